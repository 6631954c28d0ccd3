// Package matching correlates open quotes with portal awards and settles
// their outcomes.
package matching

import (
	"strings"

	"github.com/reytech/scprs-intel/internal/registry"
	"github.com/reytech/scprs-intel/internal/store"
)

// Signal weights. Agency identity is the strongest signal; institution and
// monetary proximity refine it, each with a weaker partial tier.
const (
	weightAgency          = 0.40
	weightInstitution     = 0.30
	weightInstitutionWord = 0.15
	weightAmountClose     = 0.30
	weightAmountNear      = 0.15

	amountCloseRatio = 0.9
	amountNearRatio  = 0.7

	// ConfidenceThreshold is the floor for acting on a match.
	ConfidenceThreshold = 0.6
)

// Score weighs a quote against an award and returns a confidence in
// [0, 1] plus the factor labels that contributed. A candidate that trips
// no signal still scored by sharing a search term, hence the fallback.
func Score(q store.Quote, po store.PurchaseOrder) (float64, []string) {
	var confidence float64
	var factors []string

	if agency, ok := registry.AgencyForQuote(q.Agency); ok && agency.Code == po.AgencyCode {
		confidence += weightAgency
		factors = append(factors, "agency_match")
	}

	if w, label := institutionSignal(q.Institution, po.Institution); w > 0 {
		confidence += w
		factors = append(factors, label)
	}

	if w, label := amountSignal(q.TotalAmount, po.GrandTotal); w > 0 {
		confidence += w
		factors = append(factors, label)
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if len(factors) == 0 {
		factors = []string{"term_match"}
	}
	return confidence, factors
}

func institutionSignal(quoteInst, poInst string) (float64, string) {
	qi := strings.ToLower(strings.TrimSpace(quoteInst))
	pi := strings.ToLower(strings.TrimSpace(poInst))
	if qi == "" || pi == "" {
		return 0, ""
	}
	// Full credit only when the quote institution appears inside the award
	// department name. The reverse direction falls through to the word tier.
	if strings.Contains(pi, qi) {
		return weightInstitution, "institution_match"
	}
	for _, word := range strings.Fields(qi) {
		if len(word) > 3 && strings.Contains(pi, word) {
			return weightInstitutionWord, "institution_word"
		}
	}
	return 0, ""
}

func amountSignal(quoteTotal, awardTotal float64) (float64, string) {
	if quoteTotal <= 0 || awardTotal <= 0 {
		return 0, ""
	}
	ratio := quoteTotal / awardTotal
	if ratio > 1 {
		ratio = 1 / ratio
	}
	switch {
	case ratio >= amountCloseRatio:
		return weightAmountClose, "amount_close"
	case ratio >= amountNearRatio:
		return weightAmountNear, "amount_near"
	}
	return 0, ""
}
