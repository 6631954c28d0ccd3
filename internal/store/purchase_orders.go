package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PurchaseOrder is the canonical award record. The header is written once
// when a PO is first seen and never changed afterwards apart from
// last_seen; re-pulls only ever add missing line items.
type PurchaseOrder struct {
	PONumber    string
	DeptCode    string
	DeptName    string
	Institution string
	AgencyCode  string
	SearchTerm  string
	Supplier    string
	SupplierID  string
	Status      string
	AcqType     string
	AcqMethod   string
	StartDate   string
	EndDate     string
	GrandTotal  float64
	FirstSeen   time.Time
	LastSeen    time.Time
}

// LineItem is one classified line of a purchase order.
type LineItem struct {
	PONumber    string
	LineNum     int
	ItemID      string
	Description string
	UNSPSC      string
	UOM         string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
	Category    string
	Sells       bool
	Opportunity string
	Status      string
}

// UpsertResult reports what an upsert actually changed.
type UpsertResult struct {
	IsNew      bool
	LinesAdded int
}

// UpsertPO inserts the PO if unseen and adds any line items whose line
// numbers are not on file yet. Existing headers and lines are left alone,
// so repeated pulls of the same award are no-ops beyond last_seen.
func (s *Store) UpsertPO(ctx context.Context, po PurchaseOrder, lines []LineItem) (UpsertResult, error) {
	var res UpsertResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchase_orders WHERE po_number = ?`, po.PONumber,
	).Scan(&exists)
	if err != nil {
		return res, fmt.Errorf("check po %s: %w", po.PONumber, err)
	}

	if exists == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchase_orders (
				po_number, dept_code, dept_name, institution, agency_code,
				search_term, supplier_name, supplier_id, status, acq_type,
				acq_method, start_date, end_date, grand_total, first_seen, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			po.PONumber, po.DeptCode, po.DeptName, po.Institution, po.AgencyCode,
			po.SearchTerm, po.Supplier, po.SupplierID, po.Status, po.AcqType,
			po.AcqMethod, po.StartDate, po.EndDate, po.GrandTotal, now, now,
		)
		if err != nil {
			return res, fmt.Errorf("insert po %s: %w", po.PONumber, err)
		}
		res.IsNew = true
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE purchase_orders SET last_seen = ? WHERE po_number = ?`, now, po.PONumber)
		if err != nil {
			return res, fmt.Errorf("touch po %s: %w", po.PONumber, err)
		}
	}

	for _, li := range lines {
		r, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO line_items (
				po_number, line_num, item_id, description, unspsc, uom,
				quantity, unit_price, line_total, category, sells, opportunity, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			po.PONumber, li.LineNum, li.ItemID, li.Description, li.UNSPSC, li.UOM,
			li.Quantity, li.UnitPrice, li.LineTotal, li.Category, li.Sells, li.Opportunity, li.Status,
		)
		if err != nil {
			return res, fmt.Errorf("insert line %s/%d: %w", po.PONumber, li.LineNum, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("insert line %s/%d: %w", po.PONumber, li.LineNum, err)
		}
		res.LinesAdded += int(n)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

// GetPO fetches one purchase order by number, or nil when absent.
func (s *Store) GetPO(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT po_number, dept_code, dept_name, institution, agency_code,
		       search_term, supplier_name, supplier_id, status, acq_type,
		       acq_method, start_date, end_date, grand_total, first_seen, last_seen
		FROM purchase_orders WHERE po_number = ?`, poNumber)

	var po PurchaseOrder
	err := row.Scan(
		&po.PONumber, &po.DeptCode, &po.DeptName, &po.Institution, &po.AgencyCode,
		&po.SearchTerm, &po.Supplier, &po.SupplierID, &po.Status, &po.AcqType,
		&po.AcqMethod, &po.StartDate, &po.EndDate, &po.GrandTotal, &po.FirstSeen, &po.LastSeen,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get po %s: %w", poNumber, err)
	}
	return &po, nil
}

// POsByAgency lists the orders recorded for an agency, newest start first.
func (s *Store) POsByAgency(ctx context.Context, agencyCode string) ([]PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT po_number, dept_code, dept_name, institution, agency_code,
		       search_term, supplier_name, supplier_id, status, acq_type,
		       acq_method, start_date, end_date, grand_total, first_seen, last_seen
		FROM purchase_orders WHERE agency_code = ?
		ORDER BY start_date DESC, po_number`, agencyCode)
	if err != nil {
		return nil, fmt.Errorf("list pos for %s: %w", agencyCode, err)
	}
	defer rows.Close()

	var pos []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(
			&po.PONumber, &po.DeptCode, &po.DeptName, &po.Institution, &po.AgencyCode,
			&po.SearchTerm, &po.Supplier, &po.SupplierID, &po.Status, &po.AcqType,
			&po.AcqMethod, &po.StartDate, &po.EndDate, &po.GrandTotal, &po.FirstSeen, &po.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scan po: %w", err)
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}

// LinesForPO returns a PO's line items in line order.
func (s *Store) LinesForPO(ctx context.Context, poNumber string) ([]LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT po_number, line_num, item_id, description, unspsc, uom,
		       quantity, unit_price, line_total, category, sells, opportunity, status
		FROM line_items WHERE po_number = ? ORDER BY line_num`, poNumber)
	if err != nil {
		return nil, fmt.Errorf("list lines for %s: %w", poNumber, err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(
			&li.PONumber, &li.LineNum, &li.ItemID, &li.Description, &li.UNSPSC, &li.UOM,
			&li.Quantity, &li.UnitPrice, &li.LineTotal, &li.Category, &li.Sells, &li.Opportunity, &li.Status,
		); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, li)
	}
	return lines, rows.Err()
}
