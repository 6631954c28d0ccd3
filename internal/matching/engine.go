package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/pricefeed"
	"github.com/reytech/scprs-intel/internal/registry"
	"github.com/reytech/scprs-intel/internal/store"
)

// quoteWindow bounds how far back a scan looks for actionable quotes. An
// award landing half a year after the quote went out is a coincidence,
// not an outcome.
const quoteWindow = 180 * 24 * time.Hour

// Engine runs matching scans over the stored quotes and awards.
type Engine struct {
	store  *store.Store
	feed   *pricefeed.Feed
	logger *zap.Logger

	// CompanyName identifies our own awards in supplier names,
	// case-insensitively.
	CompanyName string
}

func New(s *store.Store, feed *pricefeed.Feed, logger *zap.Logger, companyName string) *Engine {
	return &Engine{store: s, feed: feed, logger: logger, CompanyName: companyName}
}

// Report summarizes one scan.
type Report struct {
	Checked    int      `json:"quotes_checked"`
	Matched    int      `json:"matches_found"`
	AutoClosed int      `json:"quotes_auto_closed"`
	Actions    []string `json:"actions"`
}

// Scan walks every actionable quote, scores it against same-agency awards
// that share a search term with the quote's items, and settles anything at
// or above the confidence threshold. Lost awards close the quote (once)
// and feed competitor pricing; our own awards are recorded but left for a
// human to confirm.
func (e *Engine) Scan(ctx context.Context) (*Report, error) {
	since := time.Now().UTC().Add(-quoteWindow)
	quotes, err := e.store.ActionableQuotes(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load quotes: %w", err)
	}

	report := &Report{Actions: []string{}}
	for _, q := range quotes {
		report.Checked++
		if err := e.scanQuote(ctx, q, report); err != nil {
			return nil, err
		}
	}

	e.logger.Info("matching scan complete",
		zap.Int("checked", report.Checked),
		zap.Int("matched", report.Matched),
		zap.Int("auto_closed", report.AutoClosed),
	)
	return report, nil
}

func (e *Engine) scanQuote(ctx context.Context, q store.Quote, report *Report) error {
	agency, ok := registry.AgencyForQuote(q.Agency)
	if !ok {
		e.logger.Debug("quote agency not in registry", zap.String("agency", q.Agency))
		return nil
	}

	pos, err := e.store.POsByAgency(ctx, agency.Code)
	if err != nil {
		return fmt.Errorf("load awards for %s: %w", agency.Code, err)
	}

	keywords := registry.QuoteKeywords(q.ItemsText)
	for _, po := range pos {
		if !termRelevant(po.SearchTerm, keywords) {
			continue
		}
		confidence, factors := Score(q, po)
		if confidence < ConfidenceThreshold {
			continue
		}
		if err := e.settle(ctx, q, po, confidence, factors, report); err != nil {
			return err
		}
	}
	return nil
}

func termRelevant(searchTerm string, keywords []string) bool {
	for _, kw := range keywords {
		if searchTerm == kw {
			return true
		}
	}
	return false
}

func (e *Engine) settle(ctx context.Context, q store.Quote, po store.PurchaseOrder,
	confidence float64, factors []string, report *Report) error {

	weWon := strings.Contains(strings.ToLower(po.Supplier), strings.ToLower(e.CompanyName))
	outcome := store.OutcomeLost
	if weWon {
		outcome = store.OutcomeWon
	}

	m := store.Match{
		QuoteID:    q.ID,
		PONumber:   po.PONumber,
		Confidence: confidence,
		Factors:    strings.Join(factors, "+"),
		Outcome:    outcome,
	}

	if weWon {
		// Our own award: record it for the reconcile flow, never close the
		// quote automatically.
		inserted, err := e.store.RecordMatch(ctx, m)
		if err != nil {
			return err
		}
		if inserted {
			report.Matched++
			report.Actions = append(report.Actions, fmt.Sprintf(
				"quote %s matches our award %s (%.2f) - confirm via reconcile",
				q.QuoteNumber, po.PONumber, confidence))
		}
		return nil
	}

	closed, err := e.store.CloseQuote(ctx, q.ID, store.QuoteClosedLost,
		fmt.Sprintf("lost_to_competitor:%s", po.Supplier))
	if err != nil {
		return err
	}
	m.AutoClosed = closed

	inserted, err := e.store.RecordMatch(ctx, m)
	if err != nil {
		return err
	}
	if inserted {
		report.Matched++
		report.Actions = append(report.Actions, fmt.Sprintf(
			"quote %s lost to %s on %s (%.2f)",
			q.QuoteNumber, po.Supplier, po.PONumber, confidence))
	}
	if closed {
		report.AutoClosed++
		if err := e.feedCompetitorPrices(ctx, po); err != nil {
			return err
		}
	}
	return nil
}

// feedCompetitorPrices pushes the winning award's priced lines into the
// price feed so lost business still yields market intelligence.
func (e *Engine) feedCompetitorPrices(ctx context.Context, po store.PurchaseOrder) error {
	lines, err := e.store.LinesForPO(ctx, po.PONumber)
	if err != nil {
		return err
	}
	for _, li := range lines {
		_, err := e.feed.Record(ctx, store.PriceObservation{
			Description: li.Description,
			Category:    li.Category,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			UOM:         li.UOM,
			Supplier:    po.Supplier,
			AgencyCode:  po.AgencyCode,
			PONumber:    po.PONumber,
			LineNum:     li.LineNum,
			Source:      store.SourceCompetitorAward,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
