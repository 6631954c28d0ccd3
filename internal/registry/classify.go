package registry

import "strings"

// Opportunity flags attached to classified line items.
const (
	OpportunityWinBack = "WIN_BACK"
	OpportunityGapItem = "GAP_ITEM"

	// CategoryOther is where unmatched descriptions land. Not an error.
	CategoryOther = "other"
)

// Classification is the result of mapping a line-item description onto the
// catalog.
type Classification struct {
	Category    string
	Sells       bool
	Opportunity string
}

// Classify maps a line-item description to a catalog category, a sells
// flag and an opportunity flag. Pure and deterministic: a case-insensitive
// substring walk over ProductTerms where the FIRST hit wins. This is not
// longest-match on purpose: the plan is ordered so specific terms shadow
// broad ones, and reordering the list changes results.
func Classify(description string) Classification {
	desc := strings.ToLower(description)
	for _, t := range ProductTerms {
		if strings.Contains(desc, t.Term) {
			c := Classification{Category: t.Category, Sells: t.Sells}
			if t.Sells {
				c.Opportunity = OpportunityWinBack
			} else {
				c.Opportunity = OpportunityGapItem
			}
			return c
		}
	}
	return Classification{Category: CategoryOther}
}
