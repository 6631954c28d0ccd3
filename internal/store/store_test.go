package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPO(num string) PurchaseOrder {
	return PurchaseOrder{
		PONumber:   num,
		DeptCode:   "5225",
		DeptName:   "Corrections Health Care Services",
		AgencyCode: "CCHCS",
		SearchTerm: "nitrile gloves",
		Supplier:   "MEDLINE INDUSTRIES LP",
		GrandTotal: 12400.50,
		StartDate:  "06/15/2026",
	}
}

func testLines(num string, n int) []LineItem {
	var lines []LineItem
	for i := 0; i < n; i++ {
		lines = append(lines, LineItem{
			PONumber:    num,
			LineNum:     i,
			Description: "Nitrile exam gloves, medium",
			Category:    "exam_gloves",
			Sells:       true,
			Opportunity: "WIN_BACK",
			Quantity:    100,
			UnitPrice:   8.90,
			LineTotal:   890,
		})
	}
	return lines
}

func TestUpsertPOIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.UpsertPO(ctx, testPO("4500123456"), testLines("4500123456", 2))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !res.IsNew || res.LinesAdded != 2 {
		t.Fatalf("first upsert = %+v, want new with 2 lines", res)
	}

	// The same award pulled again must add nothing.
	res, err = s.UpsertPO(ctx, testPO("4500123456"), testLines("4500123456", 2))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res.IsNew || res.LinesAdded != 0 {
		t.Fatalf("second upsert = %+v, want no-op", res)
	}
}

func TestUpsertPOAddsOnlyMissingLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertPO(ctx, testPO("4500123456"), testLines("4500123456", 1)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Next pull sees three lines; only the two new line numbers land, and
	// line 0 keeps its original content.
	lines := testLines("4500123456", 3)
	lines[0].Description = "changed upstream"
	res, err := s.UpsertPO(ctx, testPO("4500123456"), lines)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res.IsNew || res.LinesAdded != 2 {
		t.Fatalf("res = %+v, want 2 lines added to existing po", res)
	}

	got, err := s.LinesForPO(ctx, "4500123456")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3", len(got))
	}
	if got[0].Description != "Nitrile exam gloves, medium" {
		t.Fatalf("line 0 was overwritten: %q", got[0].Description)
	}
}

func TestUpsertPOHeaderNeverOverwritten(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertPO(ctx, testPO("4500123456"), nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	changed := testPO("4500123456")
	changed.Supplier = "SOMEONE ELSE"
	changed.GrandTotal = 1
	if _, err := s.UpsertPO(ctx, changed, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	po, err := s.GetPO(ctx, "4500123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if po.Supplier != "MEDLINE INDUSTRIES LP" || po.GrandTotal != 12400.50 {
		t.Fatalf("header changed on re-pull: %+v", po)
	}
}

func TestCloseQuoteForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertQuote(ctx, Quote{QuoteNumber: "Q-1001", Agency: "CDCR", TotalAmount: 5000})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	moved, err := s.CloseQuote(ctx, id, QuoteClosedLost, "lost_to_competitor")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !moved {
		t.Fatal("first close should transition")
	}

	// A second scan finding the same award must not re-fire the transition.
	moved, err = s.CloseQuote(ctx, id, QuoteClosedLost, "lost_to_competitor")
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if moved {
		t.Fatal("closed quote transitioned again")
	}

	q, err := s.GetQuote(ctx, id)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if q.Status != QuoteClosedLost || q.CloseReason != "lost_to_competitor" {
		t.Fatalf("quote = %+v", q)
	}
	if q.ClosedAt.IsZero() {
		t.Fatal("closed_at not set")
	}
}

func TestCloseQuoteRejectsNonTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertQuote(context.Background(), Quote{QuoteNumber: "Q-1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.CloseQuote(context.Background(), id, "open", "x"); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestRecordMatchDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertQuote(ctx, Quote{QuoteNumber: "Q-1"})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	m := Match{QuoteID: id, PONumber: "4500123456", Confidence: 1.0, Outcome: OutcomeLost}
	inserted, err := s.RecordMatch(ctx, m)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !inserted {
		t.Fatal("first record should insert")
	}

	inserted, err = s.RecordMatch(ctx, m)
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if inserted {
		t.Fatal("duplicate match inserted")
	}

	got, err := s.MatchesForQuote(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
}

func TestAddObservationDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := PriceObservation{
		Description: "Nitrile exam gloves, medium",
		Category:    "exam_gloves",
		UnitPrice:   8.90,
		PONumber:    "4500123456",
		LineNum:     0,
		Source:      SourceMarketPull,
	}
	inserted, err := s.AddObservation(ctx, o)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !inserted {
		t.Fatal("first observation should insert")
	}
	inserted, err = s.AddObservation(ctx, o)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if inserted {
		t.Fatal("duplicate observation inserted")
	}

	stats, err := s.StatsByCategory(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Count != 1 || stats[0].Avg != 8.90 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestClaimPullSingleFlight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, err := s.ClaimPull(ctx, "CCHCS")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := s.ClaimPull(ctx, "CALVET"); err != ErrPullRunning {
		t.Fatalf("second claim err = %v, want ErrPullRunning", err)
	}

	job.Status = PullDone
	job.NewPOs = 4
	if err := s.FinishPull(ctx, job); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// Slot is free again.
	if _, err := s.ClaimPull(ctx, "CALVET"); err != nil {
		t.Fatalf("claim after finish: %v", err)
	}

	latest, err := s.LatestPull(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != PullRunning || latest.AgencyCode != "CALVET" {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestOpenReclaimsInterruptedPull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intel.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.ClaimPull(ctx, "CCHCS"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Process dies mid-pull: the job is never finished.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	latest, err := s.LatestPull(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != PullFailed {
		t.Fatalf("status after restart = %q, want %q", latest.Status, PullFailed)
	}
	if latest.Summary != "interrupted: process exited mid-pull" {
		t.Fatalf("summary = %q", latest.Summary)
	}

	// The slot is usable again.
	if _, err := s.ClaimPull(ctx, "CCHCS"); err != nil {
		t.Fatalf("claim after restart: %v", err)
	}
}

func TestDueAgencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	codes := []string{"CCHCS", "CALVET", "DSH"}

	// Nothing scheduled yet: everything is due.
	due, err := s.DueAgencies(ctx, codes, now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("due = %v", due)
	}

	if err := s.MarkPulled(ctx, "CCHCS", now.Add(6*time.Hour)); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkPulled(ctx, "CALVET", now.Add(-time.Minute)); err != nil {
		t.Fatalf("mark: %v", err)
	}

	due, err = s.DueAgencies(ctx, codes, now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 || due[0] != "CALVET" || due[1] != "DSH" {
		t.Fatalf("due = %v", due)
	}
}

func TestRecordAwardAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordAward(ctx, "MEDLINE INDUSTRIES LP", "0000012345", 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordAward(ctx, "MEDLINE INDUSTRIES LP", "0000012345", 500); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordAward(ctx, "Local Janitorial Co", "", 200); err != nil {
		t.Fatalf("record: %v", err)
	}

	top, err := s.TopSuppliers(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d suppliers", len(top))
	}
	if top[0].Name != "MEDLINE INDUSTRIES LP" || top[0].POCount != 2 || top[0].TotalAwarded != 1500 {
		t.Fatalf("top = %+v", top[0])
	}
	if !top[0].IsCompetitor {
		t.Fatal("medline should be flagged as competitor")
	}
	if top[1].IsCompetitor {
		t.Fatal("unknown supplier flagged as competitor")
	}
}

func TestSpendByOpportunity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	po := testPO("4500123456")
	lines := []LineItem{
		{PONumber: po.PONumber, LineNum: 0, Description: "ABD pad 5x9", Category: "wound_care", Opportunity: "GAP_ITEM", LineTotal: 1200},
		{PONumber: po.PONumber, LineNum: 1, Description: "Nitrile gloves", Category: "exam_gloves", Sells: true, Opportunity: "WIN_BACK", LineTotal: 890},
		{PONumber: po.PONumber, LineNum: 2, Description: "Gauze roll", Category: "wound_care", Opportunity: "GAP_ITEM", LineTotal: 300},
	}
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	gaps, err := s.SpendByOpportunity(ctx, "GAP_ITEM")
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Category != "wound_care" || gaps[0].Spend != 1500 || gaps[0].Lines != 2 {
		t.Fatalf("gaps = %+v", gaps)
	}

	items, err := s.ItemsByOpportunity(ctx, "GAP_ITEM", 50)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 || items[0].Description != "ABD pad 5x9" {
		t.Fatalf("items = %+v", items)
	}

	byAgency, err := s.GapSpendByAgency(ctx)
	if err != nil {
		t.Fatalf("by agency: %v", err)
	}
	if len(byAgency) != 1 || byAgency[0].AgencyCode != "CCHCS" || byAgency[0].Spend != 1500 {
		t.Fatalf("byAgency = %+v", byAgency)
	}
}
