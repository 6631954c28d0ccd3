package registry

import "strings"

// ProductTerm is one entry of the search plan: the term we feed to the
// portal search, the catalog category its hits are filed under, whether
// Reytech carries the item, and how urgent the term is.
type ProductTerm struct {
	Term     string
	Category string
	Sells    bool
	Priority string
}

// ProductTerms is the ordered search plan. ORDER MATTERS: Classify walks
// this slice top to bottom and the first keyword hit wins, so broader
// terms must stay below the specific ones that shadow them.
var ProductTerms = []ProductTerm{
	{"nitrile gloves", "exam_gloves", true, "P0"},
	{"nitrile exam", "exam_gloves", true, "P0"},
	{"nitrile", "exam_gloves", true, "P0"},
	{"vinyl gloves", "exam_gloves", false, "P0"},
	{"latex gloves", "exam_gloves", false, "P0"},
	{"adult brief", "incontinence", true, "P0"},
	{"incontinence pad", "incontinence", true, "P0"},
	{"underpads", "incontinence", true, "P0"},
	{"chux", "incontinence", true, "P0"},
	{"n95", "respiratory", true, "P0"},
	{"respirator", "respiratory", true, "P0"},
	{"surgical mask", "respiratory", false, "P0"},
	{"face mask", "respiratory", false, "P0"},
	{"first aid kit", "first_aid", true, "P0"},
	{"tourniquet", "trauma", true, "P0"},
	{"hi-vis vest", "safety", true, "P0"},
	{"safety vest", "safety", true, "P0"},
	{"wound care", "wound_care", false, "P1"},
	{"gauze", "wound_care", false, "P1"},
	{"abd pad", "wound_care", false, "P1"},
	{"wound dressing", "wound_care", false, "P1"},
	{"sharps container", "sharps", false, "P1"},
	{"hand sanitizer", "hand_hygiene", false, "P1"},
	{"patient restraint", "restraints", false, "P1"},
	{"restraint", "restraints", false, "P1"},
	{"hard hat", "safety", false, "P1"},
	{"safety glasses", "safety", false, "P1"},
	{"work gloves", "gloves_safety", false, "P1"},
	{"black nitrile", "exam_gloves_le", true, "P1"},
	{"trash bag", "janitorial", false, "P2"},
	{"paper towel", "janitorial", false, "P2"},
	{"disinfectant", "janitorial", false, "P2"},
	{"exam table paper", "clinical", false, "P2"},
	{"gown", "clinical", false, "P2"},
	{"catheter", "clinical", false, "P2"},
	{"iv bag", "clinical", false, "P2"},
	{"blood pressure", "clinical", false, "P2"},
	{"thermometer", "clinical", false, "P2"},
	{"syringe", "pharmacy", false, "P2"},
	{"compression", "wound_care", false, "P2"},
	{"activity supplies", "recreational", false, "P2"},
	{"recreation", "recreational", false, "P2"},
	{"toner", "office", false, "P2"},
	{"copy paper", "office", false, "P2"},
}

// TermsForPriority returns the slice of the search plan at or above the
// requested priority cap, preserving plan order.
func TermsForPriority(cap string) []ProductTerm {
	out := make([]ProductTerm, 0, len(ProductTerms))
	for _, t := range ProductTerms {
		if PriorityAtMost(t.Priority, cap) {
			out = append(out, t)
		}
	}
	return out
}

// QuoteKeywords extracts the product terms a quote's item summary touches.
// Used to narrow the matching scan to purchase orders that were found by
// the same searches. A quote mentioning nothing in the plan falls back to
// the generic term so the scan still has something to pivot on.
func QuoteKeywords(itemsText string) []string {
	text := strings.ToLower(itemsText)
	keywords := make([]string, 0, 4)
	for _, t := range ProductTerms {
		for _, w := range strings.Fields(strings.ToLower(t.Term)) {
			if strings.Contains(text, w) {
				keywords = append(keywords, t.Term)
				break
			}
		}
	}
	if len(keywords) == 0 {
		return []string{"medical supplies"}
	}
	return keywords
}
