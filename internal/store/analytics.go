package store

import (
	"context"
	"fmt"
)

// CategorySpend aggregates classified line spend for one catalog category.
type CategorySpend struct {
	Category string
	Spend    float64
	Lines    int
	Agencies int
}

// SpendByOpportunity groups line spend by category for one opportunity
// kind (WIN_BACK or GAP_ITEM), biggest spend first.
func (s *Store) SpendByOpportunity(ctx context.Context, opportunity string) ([]CategorySpend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.category, SUM(l.line_total), COUNT(*), COUNT(DISTINCT p.agency_code)
		FROM line_items l
		JOIN purchase_orders p ON p.po_number = l.po_number
		WHERE l.opportunity = ?
		GROUP BY l.category
		ORDER BY SUM(l.line_total) DESC, l.category`, opportunity)
	if err != nil {
		return nil, fmt.Errorf("spend by opportunity %s: %w", opportunity, err)
	}
	defer rows.Close()

	var out []CategorySpend
	for rows.Next() {
		var cs CategorySpend
		if err := rows.Scan(&cs.Category, &cs.Spend, &cs.Lines, &cs.Agencies); err != nil {
			return nil, fmt.Errorf("scan category spend: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// OpportunityItem is one classified line with its award context, as served
// by the gap-item and win-back drill-downs.
type OpportunityItem struct {
	PONumber    string
	Description string
	Category    string
	UOM         string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
	Supplier    string
	AgencyCode  string
}

// ItemsByOpportunity lists individual lines for one opportunity kind,
// biggest line first.
func (s *Store) ItemsByOpportunity(ctx context.Context, opportunity string, limit int) ([]OpportunityItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.po_number, l.description, l.category, l.uom,
		       l.quantity, l.unit_price, l.line_total,
		       p.supplier_name, p.agency_code
		FROM line_items l
		JOIN purchase_orders p ON p.po_number = l.po_number
		WHERE l.opportunity = ?
		ORDER BY l.line_total DESC, l.po_number, l.line_num
		LIMIT ?`, opportunity, limit)
	if err != nil {
		return nil, fmt.Errorf("items by opportunity %s: %w", opportunity, err)
	}
	defer rows.Close()

	var out []OpportunityItem
	for rows.Next() {
		var it OpportunityItem
		if err := rows.Scan(&it.PONumber, &it.Description, &it.Category, &it.UOM,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.Supplier, &it.AgencyCode); err != nil {
			return nil, fmt.Errorf("scan opportunity item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AgencySpend is gap spend rolled up to one agency.
type AgencySpend struct {
	AgencyCode string
	Spend      float64
	POs        int
}

// GapSpendByAgency totals gap-item spend per agency, biggest first. Feeds
// the agency-expansion recommendations.
func (s *Store) GapSpendByAgency(ctx context.Context) ([]AgencySpend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.agency_code, SUM(l.line_total), COUNT(DISTINCT p.po_number)
		FROM line_items l
		JOIN purchase_orders p ON p.po_number = l.po_number
		WHERE l.opportunity = 'GAP_ITEM' AND p.agency_code != ''
		GROUP BY p.agency_code
		ORDER BY SUM(l.line_total) DESC, p.agency_code`)
	if err != nil {
		return nil, fmt.Errorf("gap spend by agency: %w", err)
	}
	defer rows.Close()

	var out []AgencySpend
	for rows.Next() {
		var as AgencySpend
		if err := rows.Scan(&as.AgencyCode, &as.Spend, &as.POs); err != nil {
			return nil, fmt.Errorf("scan agency spend: %w", err)
		}
		out = append(out, as)
	}
	return out, rows.Err()
}

// Counts is the dashboard snapshot of table sizes.
type Counts struct {
	PurchaseOrders int
	LineItems      int
	Quotes         int
	Matches        int
	Observations   int
	Suppliers      int
}

// Totals counts the main tables for the status endpoint.
func (s *Store) Totals(ctx context.Context) (Counts, error) {
	var c Counts
	tables := []struct {
		name string
		dst  *int
	}{
		{"purchase_orders", &c.PurchaseOrders},
		{"line_items", &c.LineItems},
		{"quotes", &c.Quotes},
		{"quote_po_matches", &c.Matches},
		{"price_observations", &c.Observations},
		{"suppliers", &c.Suppliers},
	}
	for _, t := range tables {
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+t.name).Scan(t.dst); err != nil {
			return c, fmt.Errorf("count %s: %w", t.name, err)
		}
	}
	return c, nil
}
