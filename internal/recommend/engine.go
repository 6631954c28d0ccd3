// Package recommend turns accumulated award, classification and match data
// into a ranked list of business actions.
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/registry"
	"github.com/reytech/scprs-intel/internal/store"
)

// Recommendation kinds.
const (
	KindWinBack         = "win_back"
	KindStockGap        = "stock_gap"
	KindPricingReview   = "pricing_review"
	KindAgencyExpansion = "agency_expansion"
)

// Aggregation floors and caps. Below the floors the data is noise; the
// caps keep the output an actionable shortlist rather than a dump.
const (
	gapSpendFloor     = 1000
	gapHighSpend      = 50000
	winBackSpendFloor = 500
	expansionFloor    = 10000

	maxGapRecs     = 5
	maxPricingRecs = 3
	maxTotal       = 12
)

var (
	gapMarkup       = decimal.NewFromFloat(1.2)
	expansionFactor = decimal.NewFromFloat(0.3)
)

type Recommendation struct {
	Kind           string          `json:"kind"`
	Priority       string          `json:"priority"`
	Title          string          `json:"title"`
	Detail         string          `json:"detail"`
	Category       string          `json:"category,omitempty"`
	Agency         string          `json:"agency,omitempty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

type Engine struct {
	store  *store.Store
	logger *zap.Logger
}

func New(s *store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

// Recommendations builds the ranked action list: win-backs and stock gaps
// from classified award spend, pricing reviews from lost quotes, and
// agency expansion from gap spend concentration. Output order is fully
// determined by the stored data.
func (e *Engine) Recommendations(ctx context.Context) ([]Recommendation, error) {
	var recs []Recommendation

	winBacks, err := e.winBackRecs(ctx)
	if err != nil {
		return nil, err
	}
	recs = append(recs, winBacks...)

	gaps, err := e.gapRecs(ctx)
	if err != nil {
		return nil, err
	}
	recs = append(recs, gaps...)

	pricing, err := e.pricingRecs(ctx)
	if err != nil {
		return nil, err
	}
	recs = append(recs, pricing...)

	expansion, err := e.expansionRecs(ctx)
	if err != nil {
		return nil, err
	}
	recs = append(recs, expansion...)

	sort.SliceStable(recs, func(i, j int) bool {
		return rankScore(recs[i]).GreaterThan(rankScore(recs[j]))
	})
	if len(recs) > maxTotal {
		recs = recs[:maxTotal]
	}

	e.logger.Debug("recommendations built", zap.Int("count", len(recs)))
	return recs, nil
}

// rankScore folds priority and value into one sortable number: a full
// priority tier always outranks any value difference within a lower tier.
func rankScore(r Recommendation) decimal.Decimal {
	tier := decimal.NewFromInt(int64(registry.PriorityRank(r.Priority)) * 1_000_000_000)
	return tier.Add(r.EstimatedValue)
}

func (e *Engine) winBackRecs(ctx context.Context) ([]Recommendation, error) {
	spend, err := e.store.SpendByOpportunity(ctx, registry.OpportunityWinBack)
	if err != nil {
		return nil, fmt.Errorf("win-back spend: %w", err)
	}

	var recs []Recommendation
	for _, cs := range spend {
		if cs.Spend < winBackSpendFloor {
			continue
		}
		value := decimal.NewFromFloat(cs.Spend).Round(2)
		recs = append(recs, Recommendation{
			Kind:     KindWinBack,
			Priority: "P0",
			Title:    fmt.Sprintf("Win back %s business", cs.Category),
			Detail: fmt.Sprintf("Competitors took %s of %s across %d lines at %d agencies; we carry this category.",
				value.StringFixed(2), cs.Category, cs.Lines, cs.Agencies),
			Category:       cs.Category,
			EstimatedValue: value,
		})
	}
	return recs, nil
}

func (e *Engine) gapRecs(ctx context.Context) ([]Recommendation, error) {
	spend, err := e.store.SpendByOpportunity(ctx, registry.OpportunityGapItem)
	if err != nil {
		return nil, fmt.Errorf("gap spend: %w", err)
	}

	var recs []Recommendation
	for _, cs := range spend {
		if cs.Spend < gapSpendFloor {
			continue
		}
		priority := "P1"
		if cs.Spend > gapHighSpend {
			priority = "P0"
		}
		value := decimal.NewFromFloat(cs.Spend).Mul(gapMarkup).Round(2)
		recs = append(recs, Recommendation{
			Kind:     KindStockGap,
			Priority: priority,
			Title:    fmt.Sprintf("Stock %s", cs.Category),
			Detail: fmt.Sprintf("Agencies bought %.2f of %s we do not carry (%d lines).",
				cs.Spend, cs.Category, cs.Lines),
			Category:       cs.Category,
			EstimatedValue: value,
		})
		if len(recs) == maxGapRecs {
			break
		}
	}
	return recs, nil
}

func (e *Engine) pricingRecs(ctx context.Context) ([]Recommendation, error) {
	losses, err := e.store.LostMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("lost matches: %w", err)
	}

	var recs []Recommendation
	for _, lm := range losses {
		// A winner priced above our quote means we lost on something other
		// than price, which is worth a review; losses below our price are
		// plain price competition and not actionable here.
		delta := lm.AwardTotal - lm.QuoteTotal
		if delta <= 0 {
			continue
		}
		value := decimal.NewFromFloat(lm.AwardTotal).Round(2)
		recs = append(recs, Recommendation{
			Kind:     KindPricingReview,
			Priority: "P0",
			Title:    fmt.Sprintf("Review loss of quote %s", lm.QuoteNumber),
			Detail: fmt.Sprintf("%s won at %.2f, above our %.2f quote; price was not the blocker.",
				lm.Supplier, lm.AwardTotal, lm.QuoteTotal),
			Agency:         lm.Agency,
			EstimatedValue: value,
		})
		if len(recs) == maxPricingRecs {
			break
		}
	}
	return recs, nil
}

func (e *Engine) expansionRecs(ctx context.Context) ([]Recommendation, error) {
	byAgency, err := e.store.GapSpendByAgency(ctx)
	if err != nil {
		return nil, fmt.Errorf("gap by agency: %w", err)
	}

	var recs []Recommendation
	for _, as := range byAgency {
		if as.Spend <= expansionFloor {
			continue
		}
		value := decimal.NewFromFloat(as.Spend).Mul(expansionFactor).Round(2)
		name := as.AgencyCode
		if agency, ok := registry.FindAgency(as.AgencyCode); ok {
			name = agency.FullName
		}
		recs = append(recs, Recommendation{
			Kind:     KindAgencyExpansion,
			Priority: "P1",
			Title:    fmt.Sprintf("Expand catalog coverage at %s", name),
			Detail: fmt.Sprintf("%s spent %.2f on items outside our catalog across %d orders.",
				name, as.Spend, as.POs),
			Agency:         as.AgencyCode,
			EstimatedValue: value,
		})
	}
	return recs, nil
}

// GapItems lists the individual uncarried lines behind the stock-gap
// recommendations.
func (e *Engine) GapItems(ctx context.Context, limit int) ([]store.OpportunityItem, error) {
	return e.store.ItemsByOpportunity(ctx, registry.OpportunityGapItem, limit)
}

// WinBackItems lists the carried lines competitors won.
func (e *Engine) WinBackItems(ctx context.Context, limit int) ([]store.OpportunityItem, error) {
	return e.store.ItemsByOpportunity(ctx, registry.OpportunityWinBack, limit)
}
