package policy

import (
	"fmt"
	"strings"

	"market-briefer/internal/model"
)

// Decision records which policy was picked and why, for audit logs.
type Decision struct {
	Policy        Policy
	Source        string // "override" or "auto"
	Reason        string
	OverrideValue string
}

// regulatedKeywords flag profiles in industries where source quality is a
// compliance concern, not just an editorial one. Substring matching covers
// the usual Portuguese inflections.
var regulatedKeywords = []string{
	"advog", "jurid", "juríd", "contab", "contáb",
	"clinic", "clínic", "medic", "médic", "odont", "farmac",
	"saude", "saúde", "trabalhist", "previd", "oab",
	"invest", "finance", "seguro", "banco",
}

// minDescriptionLen is the description length below which a profile is
// considered too sparse for targeted searching.
const minDescriptionLen = 30

// Resolve picks the policy for a profile. Precedence: manual override,
// sparse-profile broad discovery, regulated-industry strictness, default.
// An invalid override never fails the call; it is recorded in the reason
// and resolution falls through to the automatic rules.
func Resolve(profile model.Profile) Decision {
	override := strings.ToLower(strings.TrimSpace(profile.PolicyOverride))
	invalidOverride := ""
	if override != "" {
		if IsValidKey(override) {
			p, _ := ByKey(override)
			return Decision{
				Policy:        p,
				Source:        "override",
				Reason:        "manual_override",
				OverrideValue: override,
			}
		}
		invalidOverride = fmt.Sprintf("invalid_override:%s", override)
	}

	specialization := strings.ToLower(strings.TrimSpace(profile.Specialization))
	description := strings.ToLower(strings.TrimSpace(profile.BusinessDescription))
	products := strings.ToLower(strings.TrimSpace(profile.ProductsServices))

	if specialization == "" || len(description) < minDescriptionLen {
		p, _ := ByKey(KeyBroadDiscovery)
		return Decision{
			Policy: p,
			Source: "auto",
			Reason: joinReason(invalidOverride, "profile_incomplete_or_short_description"),
		}
	}

	combined := strings.Join([]string{specialization, description, products}, " ")
	for _, kw := range regulatedKeywords {
		if strings.Contains(combined, kw) {
			p, _ := ByKey(KeyBusinessStrict)
			return Decision{
				Policy: p,
				Source: "auto",
				Reason: joinReason(invalidOverride, "regulated_keywords_detected"),
			}
		}
	}

	p, _ := ByKey(KeyDefault)
	return Decision{
		Policy: p,
		Source: "auto",
		Reason: joinReason(invalidOverride, "default_policy"),
	}
}

func joinReason(prefix, reason string) string {
	if prefix == "" {
		return reason
	}
	return prefix + "|" + reason
}
