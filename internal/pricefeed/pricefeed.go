// Package pricefeed accumulates observed market pricing. Every priced line
// item seen during a pull and every competitor award found by a matching
// scan lands here, deduplicated by the store.
package pricefeed

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/store"
)

type Feed struct {
	store  *store.Store
	logger *zap.Logger
}

func New(s *store.Store, logger *zap.Logger) *Feed {
	return &Feed{store: s, logger: logger}
}

// Record appends one observation. Lines without a usable price or
// description are quietly skipped; they carry no pricing signal and would
// only pollute the stats. Returns whether a new row landed.
func (f *Feed) Record(ctx context.Context, o store.PriceObservation) (bool, error) {
	if o.UnitPrice <= 0 || strings.TrimSpace(o.Description) == "" {
		f.logger.Debug("skipping unpriced observation",
			zap.String("po", o.PONumber),
			zap.Int("line", o.LineNum),
		)
		return false, nil
	}
	return f.store.AddObservation(ctx, o)
}

// Summary returns per-category price statistics.
func (f *Feed) Summary(ctx context.Context) ([]store.PriceStats, error) {
	return f.store.StatsByCategory(ctx)
}
