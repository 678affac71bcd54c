package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-briefer/internal/policy"
)

// policyCmd prints the resolved search policy for a subscriber.
var policyCmd = &cobra.Command{
	Use:   "policy <subscriber-id>",
	Short: "Show which search policy a subscriber resolves to, and why",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		for _, p := range cfg.Profiles() {
			if p.ID != args[0] {
				continue
			}
			d := policy.Resolve(p)
			fmt.Fprintf(cmd.OutOrStdout(), "policy: %s\nsource: %s\nreason: %s\n",
				d.Policy.Key, d.Source, d.Reason)
			return nil
		}
		return fmt.Errorf("unknown subscriber %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
}
