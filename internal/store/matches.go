package store

import (
	"context"
	"fmt"
	"time"
)

// Match outcomes. we_won means the awarded supplier is us; we_lost means a
// competitor took an award we had quoted.
const (
	OutcomeWon  = "we_won"
	OutcomeLost = "we_lost"
)

type Match struct {
	ID         int64
	QuoteID    string
	PONumber   string
	Confidence float64
	Factors    string
	Outcome    string
	AutoClosed bool
	CreatedAt  time.Time
}

// RecordMatch stores a quote/PO association. The (quote_id, po_number)
// pair is unique, so re-scans of the same portal data report inserted =
// false instead of stacking duplicates.
func (s *Store) RecordMatch(ctx context.Context, m Match) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO quote_po_matches
			(quote_id, po_number, confidence, factors, outcome, auto_closed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.QuoteID, m.PONumber, m.Confidence, m.Factors, m.Outcome, m.AutoClosed, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("record match %s/%s: %w", m.QuoteID, m.PONumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record match %s/%s: %w", m.QuoteID, m.PONumber, err)
	}
	return n > 0, nil
}

// MatchesForQuote lists a quote's recorded matches, strongest first.
func (s *Store) MatchesForQuote(ctx context.Context, quoteID string) ([]Match, error) {
	return s.queryMatches(ctx, `
		SELECT id, quote_id, po_number, confidence, factors, outcome, auto_closed, created_at
		FROM quote_po_matches WHERE quote_id = ?
		ORDER BY confidence DESC, po_number`, quoteID)
}

// WonMatches lists matches where we took the award. These are the
// informational records the reconcile flow walks to mark quotes won.
func (s *Store) WonMatches(ctx context.Context) ([]Match, error) {
	return s.queryMatches(ctx, `
		SELECT m.id, m.quote_id, m.po_number, m.confidence, m.factors, m.outcome, m.auto_closed, m.created_at
		FROM quote_po_matches m
		JOIN quotes q ON q.id = m.quote_id
		WHERE m.outcome = ? AND q.status IN (?, ?)
		ORDER BY m.created_at`, OutcomeWon, QuoteOpen, QuoteSent)
}

// LostMatches lists competitor-award matches with quote and PO context
// joined in for the recommendation engine.
func (s *Store) LostMatches(ctx context.Context) ([]LostMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.quote_id, m.po_number, m.confidence,
		       q.quote_number, q.agency, q.total_amount,
		       p.supplier_name, p.grand_total
		FROM quote_po_matches m
		JOIN quotes q ON q.id = m.quote_id
		JOIN purchase_orders p ON p.po_number = m.po_number
		WHERE m.outcome = ?
		ORDER BY p.grand_total DESC`, OutcomeLost)
	if err != nil {
		return nil, fmt.Errorf("list lost matches: %w", err)
	}
	defer rows.Close()

	var out []LostMatch
	for rows.Next() {
		var lm LostMatch
		if err := rows.Scan(&lm.QuoteID, &lm.PONumber, &lm.Confidence,
			&lm.QuoteNumber, &lm.Agency, &lm.QuoteTotal,
			&lm.Supplier, &lm.AwardTotal); err != nil {
			return nil, fmt.Errorf("scan lost match: %w", err)
		}
		out = append(out, lm)
	}
	return out, rows.Err()
}

// LostMatch is a lost award joined with the quote it beat.
type LostMatch struct {
	QuoteID     string
	PONumber    string
	Confidence  float64
	QuoteNumber string
	Agency      string
	QuoteTotal  float64
	Supplier    string
	AwardTotal  float64
}

func (s *Store) queryMatches(ctx context.Context, query string, args ...any) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.QuoteID, &m.PONumber, &m.Confidence,
			&m.Factors, &m.Outcome, &m.AutoClosed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
