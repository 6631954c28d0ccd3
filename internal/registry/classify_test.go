package registry

import "testing"

func TestClassifyKnownItem(t *testing.T) {
	c := Classify("Nitrile exam gloves, medium")

	if c.Category != "exam_gloves" {
		t.Fatalf("expected category exam_gloves, got %q", c.Category)
	}
	if !c.Sells {
		t.Fatalf("expected sells to be true")
	}
	if c.Opportunity != OpportunityWinBack {
		t.Fatalf("expected opportunity WIN_BACK, got %q", c.Opportunity)
	}
}

func TestClassifyUnknownItem(t *testing.T) {
	c := Classify("widget calibration bracket 5x9")

	if c.Category != CategoryOther {
		t.Fatalf("expected category other, got %q", c.Category)
	}
	if c.Sells {
		t.Fatalf("expected sells to be false")
	}
	if c.Opportunity != "" {
		t.Fatalf("expected no opportunity flag, got %q", c.Opportunity)
	}
}

func TestClassifyGapItem(t *testing.T) {
	c := Classify("ABD pad 5x9 sterile")

	if c.Category != "wound_care" {
		t.Fatalf("expected category wound_care, got %q", c.Category)
	}
	if c.Sells {
		t.Fatalf("expected sells to be false")
	}
	if c.Opportunity != OpportunityGapItem {
		t.Fatalf("expected opportunity GAP_ITEM, got %q", c.Opportunity)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// "black nitrile gloves" contains both "nitrile gloves" and
	// "black nitrile"; the earlier plan entry must win.
	c := Classify("Black nitrile gloves, large, 100ct")

	if c.Category != "exam_gloves" {
		t.Fatalf("expected the earlier exam_gloves entry to win, got %q", c.Category)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{
		"Nitrile exam gloves, medium",
		"ABD pad 5x9",
		"unmarked mystery item",
		"N95 particulate respirator",
	}
	for _, in := range inputs {
		a := Classify(in)
		b := Classify(in)
		if a != b {
			t.Fatalf("classify(%q) not deterministic: %+v vs %+v", in, a, b)
		}
	}
}

func TestAgencyMatches(t *testing.T) {
	cchcs, ok := FindAgency("CCHCS")
	if !ok {
		t.Fatalf("CCHCS missing from registry")
	}

	if !cchcs.Matches("5225", "") {
		t.Fatalf("expected dept code 5225 to match CCHCS")
	}
	if !cchcs.Matches("", "FOLSOM STATE PRISON") {
		t.Fatalf("expected Folsom pattern to match CCHCS")
	}
	if cchcs.Matches("9999", "DEPT OF PARKS") {
		t.Fatalf("unexpected match for unrelated department")
	}
}

func TestAgencyForQuote(t *testing.T) {
	a, ok := AgencyForQuote("CDCR")
	if !ok {
		t.Fatalf("expected CDCR to resolve")
	}
	if a.Code != "CCHCS" {
		t.Fatalf("expected CDCR to resolve to CCHCS, got %s", a.Code)
	}

	if _, ok := AgencyForQuote("City of Fresno"); ok {
		t.Fatalf("expected unregistered agency to not resolve")
	}
}

func TestTermsForPriority(t *testing.T) {
	p0 := TermsForPriority("P0")
	all := TermsForPriority("all")

	if len(p0) == 0 || len(p0) >= len(all) {
		t.Fatalf("expected P0 subset to be non-empty and smaller: %d vs %d", len(p0), len(all))
	}
	for _, term := range p0 {
		if term.Priority != "P0" {
			t.Fatalf("P0 cap returned %s term %q", term.Priority, term.Term)
		}
	}
	if len(all) != len(ProductTerms) {
		t.Fatalf("all cap should return the whole plan")
	}
}

func TestQuoteKeywords(t *testing.T) {
	kw := QuoteKeywords("Nitrile exam gloves (M) | N95 respirators")
	if len(kw) == 0 {
		t.Fatalf("expected keywords for glove quote")
	}

	found := false
	for _, k := range kw {
		if k == "nitrile gloves" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected nitrile gloves keyword, got %v", kw)
	}

	fallback := QuoteKeywords("completely unrelated text")
	if len(fallback) != 1 || fallback[0] != "medical supplies" {
		t.Fatalf("expected fallback keyword, got %v", fallback)
	}
}
