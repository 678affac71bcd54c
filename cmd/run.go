package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"market-briefer/internal/model"
)

// runCmd executes one subscriber's pipeline immediately.
var runCmd = &cobra.Command{
	Use:   "run <subscriber-id>",
	Short: "Generate one subscriber's brief now and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		var profile model.Profile
		var found bool
		for _, p := range cfg.Profiles() {
			if p.ID == args[0] {
				profile, found = p, true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown subscriber %q", args[0])
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		brief, err := a.pipeline.Run(cmd.Context(), profile)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(brief)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
