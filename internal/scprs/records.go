package scprs

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// SearchResult is one row of the portal's results grid. String fields come
// straight off the page; the parsed companions are filled in after decode.
type SearchResult struct {
	PONumber     string `mapstructure:"po_number"`
	DeptCode     string `mapstructure:"dept_code"`
	DeptName     string `mapstructure:"dept"`
	Institution  string `mapstructure:"institution"`
	FirstItem    string `mapstructure:"first_item"`
	SupplierName string `mapstructure:"supplier_name"`
	SupplierID   string `mapstructure:"supplier_id"`
	Status       string `mapstructure:"status"`
	AcqType      string `mapstructure:"acq_type"`
	AcqMethod    string `mapstructure:"acq_method"`
	StartDateRaw string `mapstructure:"start_date"`
	EndDateRaw   string `mapstructure:"end_date"`
	GrandTotRaw  string `mapstructure:"grand_total"`

	GrandTotal float64   `mapstructure:"-"`
	StartDate  time.Time `mapstructure:"-"`

	// Cursor addresses this row on the results page for a detail fetch.
	Cursor Cursor `mapstructure:"-"`
}

// Cursor identifies a results-grid row within the client's current search
// session. The portal exposes detail pages only as row actions against the
// page that listed them, so a cursor is only valid until the next Search.
type Cursor struct {
	RowIndex int
}

// Validate checks the fields ingestion cannot live without.
func (r *SearchResult) Validate() error {
	if strings.TrimSpace(r.PONumber) == "" {
		return &DataShapeError{Field: "po_number", Reason: "missing"}
	}
	return nil
}

// Detail is the header + line items of one purchase order's detail page.
type Detail struct {
	PONumber    string
	DeptCode    string
	DeptName    string
	Institution string
	Supplier    string
	Status      string
	StartDate   string
	EndDate     string
	AcqType     string
	AcqMethod   string
	MerchAmount float64
	GrandTotal  float64
	BuyerName   string
	BuyerEmail  string
	LineItems   []LineItem
}

// LineItem is one detail-grid row.
type LineItem struct {
	LineNum     int
	ItemID      string
	Description string
	UNSPSC      string
	UOM         string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
	Status      string
}

// decodeResult turns a raw id-extracted row into a SearchResult and parses
// the money/date companions.
func decodeResult(row map[string]string, cursor int) (SearchResult, error) {
	var res SearchResult
	cfg := &mapstructure.DecoderConfig{
		Result:  &res,
		TagName: "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return res, err
	}
	if err := decoder.Decode(row); err != nil {
		return res, err
	}

	res.GrandTotal = parseDollar(res.GrandTotRaw)
	res.StartDate = parseDate(res.StartDateRaw)
	res.Cursor = Cursor{RowIndex: cursor}
	if res.Institution == "" {
		res.Institution = res.DeptName
	}
	return res, nil
}
