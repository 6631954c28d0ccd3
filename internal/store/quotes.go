package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Quote statuses. A quote is actionable while open or sent; the closed
// statuses are terminal and never reopened by automation.
const (
	QuoteOpen       = "open"
	QuoteSent       = "sent"
	QuoteClosedWon  = "closed_won"
	QuoteClosedLost = "closed_lost"
)

type Quote struct {
	ID          string
	QuoteNumber string
	Agency      string
	Institution string
	Customer    string
	ItemsText   string
	TotalAmount float64
	Status      string
	CreatedAt   time.Time
	ClosedAt    time.Time
	CloseReason string
}

// InsertQuote records a quote and returns its generated id.
func (s *Store) InsertQuote(ctx context.Context, q Quote) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = QuoteOpen
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, quote_number, agency, institution, customer_name,
			items_text, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuoteNumber, q.Agency, q.Institution, q.Customer,
		q.ItemsText, q.TotalAmount, q.Status, q.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert quote %s: %w", q.QuoteNumber, err)
	}
	return q.ID, nil
}

// ActionableQuotes returns open/sent quotes created on or after since.
func (s *Store) ActionableQuotes(ctx context.Context, since time.Time) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quote_number, agency, institution, customer_name,
		       items_text, total_amount, status, created_at
		FROM quotes
		WHERE status IN (?, ?) AND created_at >= ?
		ORDER BY created_at`,
		QuoteOpen, QuoteSent, since,
	)
	if err != nil {
		return nil, fmt.Errorf("list actionable quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ID, &q.QuoteNumber, &q.Agency, &q.Institution,
			&q.Customer, &q.ItemsText, &q.TotalAmount, &q.Status, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// GetQuote fetches one quote by id, or nil when absent.
func (s *Store) GetQuote(ctx context.Context, id string) (*Quote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quote_number, agency, institution, customer_name,
		       items_text, total_amount, status, created_at, closed_at, close_reason
		FROM quotes WHERE id = ?`, id)

	var q Quote
	var closedAt sql.NullTime
	var reason sql.NullString
	err := row.Scan(&q.ID, &q.QuoteNumber, &q.Agency, &q.Institution, &q.Customer,
		&q.ItemsText, &q.TotalAmount, &q.Status, &q.CreatedAt, &closedAt, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quote %s: %w", id, err)
	}
	q.ClosedAt = closedAt.Time
	q.CloseReason = reason.String
	return &q, nil
}

// CloseQuote moves a quote to a terminal status. The transition only fires
// from open/sent, so a quote already closed by hand stays as it was; the
// returned bool says whether this call made the change.
func (s *Store) CloseQuote(ctx context.Context, id, status, reason string) (bool, error) {
	if status != QuoteClosedWon && status != QuoteClosedLost {
		return false, fmt.Errorf("close quote %s: %q is not a terminal status", id, status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET status = ?, closed_at = ?, close_reason = ?
		WHERE id = ? AND status IN (?, ?)`,
		status, time.Now().UTC(), reason, id, QuoteOpen, QuoteSent,
	)
	if err != nil {
		return false, fmt.Errorf("close quote %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close quote %s: %w", id, err)
	}
	return n > 0, nil
}
