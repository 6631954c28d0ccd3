package matching

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/pricefeed"
	"github.com/reytech/scprs-intel/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	feed := pricefeed.New(s, zap.NewNop())
	return New(s, feed, zap.NewNop(), "Reytech"), s
}

func competitorPO() (store.PurchaseOrder, []store.LineItem) {
	po := store.PurchaseOrder{
		PONumber:    "4500123456",
		DeptCode:    "5225",
		DeptName:    "Corrections Health Care Services",
		Institution: "Folsom State Prison",
		AgencyCode:  "CCHCS",
		SearchTerm:  "nitrile gloves",
		Supplier:    "MEDLINE INDUSTRIES LP",
		GrandTotal:  5200,
	}
	lines := []store.LineItem{
		{PONumber: po.PONumber, LineNum: 0, Description: "Nitrile exam gloves, medium",
			Category: "exam_gloves", Sells: true, Opportunity: "WIN_BACK",
			Quantity: 500, UnitPrice: 8.90, LineTotal: 4450},
		{PONumber: po.PONumber, LineNum: 1, Description: "Shipping",
			Category: "other", Quantity: 1, UnitPrice: 0, LineTotal: 0},
	}
	return po, lines
}

func folsomQuote() store.Quote {
	return store.Quote{
		QuoteNumber: "Q-2041",
		Agency:      "CDCR",
		Institution: "Folsom State Prison",
		ItemsText:   "Nitrile exam gloves, medium and large",
		TotalAmount: 5000,
	}
}

func TestScoreStrongMatch(t *testing.T) {
	po, _ := competitorPO()
	confidence, factors := Score(folsomQuote(), po)
	if confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", confidence)
	}
	joined := strings.Join(factors, "+")
	if joined != "agency_match+institution_match+amount_close" {
		t.Fatalf("factors = %q", joined)
	}
}

func TestScorePartialSignals(t *testing.T) {
	po, _ := competitorPO()

	q := folsomQuote()
	q.Institution = "Folsom Annex Clinic" // shares a >3 char word only
	q.TotalAmount = 4000                  // ratio ~0.77
	confidence, factors := Score(q, po)
	want := weightAgency + weightInstitutionWord + weightAmountNear
	if confidence != want {
		t.Fatalf("confidence = %v, want %v (factors %v)", confidence, want, factors)
	}
}

func TestScoreReverseContainmentIsWordTier(t *testing.T) {
	po, _ := competitorPO()

	// The award name is contained in the quote institution, not the other
	// way around. That only earns the shared-word tier.
	q := folsomQuote()
	q.Institution = "Folsom State Prison Medical Annex"
	q.TotalAmount = 0
	confidence, factors := Score(q, po)
	want := weightAgency + weightInstitutionWord
	if confidence != want {
		t.Fatalf("confidence = %v, want %v", confidence, want)
	}
	joined := strings.Join(factors, "+")
	if joined != "agency_match+institution_word" {
		t.Fatalf("factors = %q", joined)
	}
}

func TestScoreFallbackFactor(t *testing.T) {
	po, _ := competitorPO()
	q := store.Quote{Agency: "Water Board", Institution: "", TotalAmount: 0}
	confidence, factors := Score(q, po)
	if confidence != 0 {
		t.Fatalf("confidence = %v", confidence)
	}
	if len(factors) != 1 || factors[0] != "term_match" {
		t.Fatalf("factors = %v", factors)
	}
}

func TestScanClosesLostQuote(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	po, lines := competitorPO()
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	quoteID, err := s.InsertQuote(ctx, folsomQuote())
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	report, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Checked != 1 || report.Matched != 1 || report.AutoClosed != 1 {
		t.Fatalf("report = %+v", report)
	}

	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Status != store.QuoteClosedLost {
		t.Fatalf("status = %q", q.Status)
	}
	if !strings.Contains(q.CloseReason, "MEDLINE") {
		t.Fatalf("close reason = %q", q.CloseReason)
	}

	matches, err := s.MatchesForQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	m := matches[0]
	if m.Confidence != 1.0 || m.Outcome != store.OutcomeLost || !m.AutoClosed {
		t.Fatalf("match = %+v", m)
	}

	// The winner's priced line must be in the feed; the unpriced shipping
	// line must not.
	stats, err := s.StatsByCategory(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Category != "exam_gloves" || stats[0].Count != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestScanRepeatIsStable(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	po, lines := competitorPO()
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.InsertQuote(ctx, folsomQuote()); err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	if _, err := e.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	report, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}

	// The quote is closed now, so the second scan has nothing to act on.
	if report.Checked != 0 || report.Matched != 0 || report.AutoClosed != 0 {
		t.Fatalf("second scan report = %+v", report)
	}
}

func TestScanOurAwardStaysOpen(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	po, lines := competitorPO()
	po.Supplier = "Reytech Inc."
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	quoteID, err := s.InsertQuote(ctx, folsomQuote())
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	report, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Matched != 1 || report.AutoClosed != 0 {
		t.Fatalf("report = %+v", report)
	}

	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Status != store.QuoteOpen {
		t.Fatalf("our own award closed the quote: %q", q.Status)
	}

	matches, err := s.MatchesForQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Outcome != store.OutcomeWon {
		t.Fatalf("matches = %+v", matches)
	}

	won, err := s.WonMatches(ctx)
	if err != nil {
		t.Fatalf("won: %v", err)
	}
	if len(won) != 1 {
		t.Fatalf("won = %+v", won)
	}
}

func TestScanDiscardsWeakCandidates(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	po, lines := competitorPO()
	po.Institution = "Pelican Bay State Prison"
	po.GrandTotal = 98000
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	quoteID, err := s.InsertQuote(ctx, folsomQuote())
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	report, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// Agency plus a shared institution word is 0.55, below the threshold.
	if report.Matched != 0 || report.AutoClosed != 0 {
		t.Fatalf("report = %+v", report)
	}

	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Status != store.QuoteOpen {
		t.Fatalf("weak candidate closed the quote: %q", q.Status)
	}
}
