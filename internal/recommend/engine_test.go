package recommend

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, zap.NewNop()), s
}

func seedAwards(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	po := store.PurchaseOrder{
		PONumber: "4500100001", AgencyCode: "CCHCS", SearchTerm: "nitrile gloves",
		Supplier: "MEDLINE INDUSTRIES LP", GrandTotal: 70000, Institution: "Folsom State Prison",
	}
	lines := []store.LineItem{
		{PONumber: po.PONumber, LineNum: 0, Description: "Nitrile exam gloves",
			Category: "exam_gloves", Sells: true, Opportunity: "WIN_BACK", LineTotal: 8000},
		{PONumber: po.PONumber, LineNum: 1, Description: "ABD pads",
			Category: "wound_care", Opportunity: "GAP_ITEM", LineTotal: 60000},
		{PONumber: po.PONumber, LineNum: 2, Description: "Suture kits",
			Category: "surgical", Opportunity: "GAP_ITEM", LineTotal: 2000},
		{PONumber: po.PONumber, LineNum: 3, Description: "Misc",
			Category: "other", Opportunity: "GAP_ITEM", LineTotal: 100},
	}
	if _, err := s.UpsertPO(ctx, po, lines); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRecommendationsRanking(t *testing.T) {
	e, s := newEngine(t)
	seedAwards(t, s)

	recs, err := e.Recommendations(context.Background())
	if err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d recs: %+v", len(recs), recs)
	}

	// wound_care gap spend is 60k: P0 at 72k. That beats the P0 win-back
	// at 8k. P1s follow: agency expansion (62.1k * 0.3) over the small
	// surgical gap. The 100-unit misc gap is under the floor.
	kinds := []string{recs[0].Kind, recs[1].Kind, recs[2].Kind, recs[3].Kind}
	want := []string{KindStockGap, KindWinBack, KindAgencyExpansion, KindStockGap}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}

	if recs[0].Priority != "P0" || !recs[0].EstimatedValue.Equal(decimal.NewFromInt(72000)) {
		t.Fatalf("top rec = %+v", recs[0])
	}
	if recs[3].Priority != "P1" || !recs[3].EstimatedValue.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("surgical rec = %+v", recs[3])
	}
}

func TestRecommendationsDeterministic(t *testing.T) {
	e, s := newEngine(t)
	seedAwards(t, s)
	ctx := context.Background()

	first, err := e.Recommendations(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := e.Recommendations(ctx)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same data produced different recommendations")
	}
}

func TestPricingReviewOnlyAboveOurQuote(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	po := store.PurchaseOrder{
		PONumber: "4500100002", AgencyCode: "CCHCS", SearchTerm: "nitrile gloves",
		Supplier: "MEDLINE INDUSTRIES LP", GrandTotal: 5200,
	}
	if _, err := s.UpsertPO(ctx, po, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	cheap := store.PurchaseOrder{
		PONumber: "4500100003", AgencyCode: "CCHCS", SearchTerm: "nitrile gloves",
		Supplier: "GRAINGER", GrandTotal: 3000,
	}
	if _, err := s.UpsertPO(ctx, cheap, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	q1, err := s.InsertQuote(ctx, store.Quote{QuoteNumber: "Q-1", Agency: "CDCR", TotalAmount: 5000})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	q2, err := s.InsertQuote(ctx, store.Quote{QuoteNumber: "Q-2", Agency: "CDCR", TotalAmount: 4000})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	for _, m := range []store.Match{
		{QuoteID: q1, PONumber: po.PONumber, Confidence: 1.0, Outcome: store.OutcomeLost},
		{QuoteID: q2, PONumber: cheap.PONumber, Confidence: 0.7, Outcome: store.OutcomeLost},
	} {
		if _, err := s.RecordMatch(ctx, m); err != nil {
			t.Fatalf("match: %v", err)
		}
	}

	recs, err := e.Recommendations(ctx)
	if err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	var pricing []Recommendation
	for _, r := range recs {
		if r.Kind == KindPricingReview {
			pricing = append(pricing, r)
		}
	}
	// Q-1 lost to a higher award: review. Q-2 was simply underpriced: not.
	if len(pricing) != 1 {
		t.Fatalf("pricing recs = %+v", pricing)
	}
	if !pricing[0].EstimatedValue.Equal(decimal.NewFromInt(5200)) {
		t.Fatalf("pricing value = %s", pricing[0].EstimatedValue)
	}
}

func TestDrillDowns(t *testing.T) {
	e, s := newEngine(t)
	seedAwards(t, s)
	ctx := context.Background()

	gaps, err := e.GapItems(ctx, 50)
	if err != nil {
		t.Fatalf("gap items: %v", err)
	}
	if len(gaps) != 3 || gaps[0].Category != "wound_care" {
		t.Fatalf("gaps = %+v", gaps)
	}

	winBacks, err := e.WinBackItems(ctx, 50)
	if err != nil {
		t.Fatalf("win-back items: %v", err)
	}
	if len(winBacks) != 1 || winBacks[0].Category != "exam_gloves" {
		t.Fatalf("winBacks = %+v", winBacks)
	}
}
