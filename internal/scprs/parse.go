package scprs

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var (
	icsidRe    = regexp.MustCompile(`name='ICSID'\s+id='ICSID'\s+value='([^']*)'`)
	stateNumRe = regexp.MustCompile(`name='ICStateNum'\s+id='ICStateNum'\s+value='(\d+)'`)
	countRe    = regexp.MustCompile(`(\d+)\s+to\s+(\d+)\s+of\s+(\d+)`)
	dollarRe   = regexp.MustCompile(`[^\d.]`)
)

func extractICSID(page string) string {
	if m := icsidRe.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	return ""
}

func extractStateNum(page string) string {
	if m := stateNumRe.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	return "1"
}

// resultCount pulls the total out of the grid's "1 to 25 of 112" banner.
// Zero means the page reported no results at all.
func resultCount(page string) int {
	m := countRe.FindStringSubmatch(page)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[3])
	return n
}

// parseDollar strips everything but digits and the decimal point from a
// grid cell like "$12,400.50". Returns 0 for empty or unparsable text.
func parseDollar(text string) float64 {
	if text == "" {
		return 0
	}
	cleaned := dollarRe.ReplaceAllString(text, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseDate reads the portal's MM/DD/YYYY cells. Zero time on failure.
func parseDate(text string) time.Time {
	t, err := time.Parse("01/02/2006", strings.TrimSpace(text))
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseQuantity(text string) float64 {
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// page is a parsed portal response indexed by element id. PeopleSoft grids
// name every cell <PREFIX>_<FIELD>$<row>, so one pass over the tree gives
// us constant-time field lookup for both result and detail grids.
type page struct {
	raw  string
	text map[string]string
}

func parsePage(raw string) *page {
	p := &page{raw: raw, text: map[string]string{}}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return p
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val != "" {
					p.text[attr.Val] = nodeText(n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return p
}

// get returns the trimmed text of the element with the given id. PeopleSoft
// renders empty cells as a lone non-breaking space, which TrimSpace eats.
func (p *page) get(id string) string {
	return strings.TrimSpace(p.text[id])
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
