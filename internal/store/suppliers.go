package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// knownCompetitors flags the suppliers we routinely lose to. Matching is a
// case-insensitive substring check against the awarded name.
var knownCompetitors = []string{
	"cardinal", "mckesson", "medline", "grainger", "bound tree",
	"waxie", "amazon", "staples", "ims health", "henry schein",
	"owens", "concordance",
}

func isCompetitor(name string) bool {
	lower := strings.ToLower(name)
	for _, c := range knownCompetitors {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

type Supplier struct {
	Name         string
	SupplierID   string
	POCount      int
	TotalAwarded float64
	IsCompetitor bool
	LastSeen     time.Time
}

// RecordAward rolls an award into the supplier aggregate.
func (s *Store) RecordAward(ctx context.Context, name, supplierID string, amount float64) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (name, supplier_id, po_count, total_awarded, is_competitor, last_seen)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			po_count = po_count + 1,
			total_awarded = total_awarded + excluded.total_awarded,
			last_seen = excluded.last_seen`,
		name, supplierID, amount, isCompetitor(name), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record award for %s: %w", name, err)
	}
	return nil
}

// TopSuppliers lists suppliers by total awarded, competitors flagged.
func (s *Store) TopSuppliers(ctx context.Context, limit int) ([]Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, supplier_id, po_count, total_awarded, is_competitor, last_seen
		FROM suppliers ORDER BY total_awarded DESC, name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.Name, &sp.SupplierID, &sp.POCount,
			&sp.TotalAwarded, &sp.IsCompetitor, &sp.LastSeen); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
