package store

import (
	"context"
	"fmt"
	"time"
)

// Price observation sources.
const (
	SourceMarketPull      = "market_pull"
	SourceCompetitorAward = "competitor_award"
)

type PriceObservation struct {
	Description string
	Category    string
	UnitPrice   float64
	Quantity    float64
	UOM         string
	Supplier    string
	AgencyCode  string
	PONumber    string
	LineNum     int
	Source      string
	ObservedAt  time.Time
}

// AddObservation appends a price point. The (description, unit_price,
// po_number, line_num) key dedupes re-pulls; inserted reports whether the
// row was new.
func (s *Store) AddObservation(ctx context.Context, o PriceObservation) (bool, error) {
	if o.ObservedAt.IsZero() {
		o.ObservedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO price_observations
			(description, category, unit_price, quantity, uom, supplier,
			 agency_code, po_number, line_num, source, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Description, o.Category, o.UnitPrice, o.Quantity, o.UOM, o.Supplier,
		o.AgencyCode, o.PONumber, o.LineNum, o.Source, o.ObservedAt,
	)
	if err != nil {
		return false, fmt.Errorf("add observation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add observation: %w", err)
	}
	return n > 0, nil
}

// PriceStats summarizes observed market pricing for a category.
type PriceStats struct {
	Category string
	Count    int
	Min      float64
	Max      float64
	Avg      float64
}

// StatsByCategory aggregates observations per category, most observed first.
func (s *Store) StatsByCategory(ctx context.Context) ([]PriceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*), MIN(unit_price), MAX(unit_price), AVG(unit_price)
		FROM price_observations
		WHERE category IS NOT NULL AND category != ''
		GROUP BY category
		ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}
	defer rows.Close()

	var stats []PriceStats
	for rows.Next() {
		var ps PriceStats
		if err := rows.Scan(&ps.Category, &ps.Count, &ps.Min, &ps.Max, &ps.Avg); err != nil {
			return nil, fmt.Errorf("scan price stats: %w", err)
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}
