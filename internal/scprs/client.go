// Package scprs is the client for the state procurement disclosure portal,
// a PeopleSoft application searched by line-item description. The portal
// has no API: we drive its search form and read grid cells back out by
// element id.
package scprs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://suppliers.fiscal.ca.gov"
	searchPath     = "/psc/psfpd1/SUPPLIER/ERP/c/ZZ_PO.ZZ_SCPRS1_CMP.GBL"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// Search form field ids.
	fieldDescription = "ZZ_SCPRS_SP_WRK_DESCR254"
	fieldDept        = "ZZ_SCPRS_SP_WRK_BUSINESS_UNIT"
	fieldPONum       = "ZZ_SCPRS_SP_WRK_CRDMEM_ACCT_NBR"
	fieldSupplierID  = "ZZ_SCPRS_SP_WRK_SUPPLIER_ID"
	fieldSupplier    = "ZZ_SCPRS_SP_WRK_NAME1"
	fieldAcqType     = "ZZ_SCPRS_SP_WRK_ZZ_ACQ_TYPE"
	fieldAcqMethod   = "ZZ_SCPRS_SP_WRK_ZZ_ACQ_MTHD"
	fieldFromDate    = "ZZ_SCPRS_SP_WRK_FROM_DATE"
	fieldToDate      = "ZZ_SCPRS_SP_WRK_TO_DATE"
	searchButton     = "ZZ_SCPRS_SP_WRK_BUTTON"

	// Grid prefixes. Results rows are RD, detail line rows are PDL;
	// the row index is appended as $0, $1, ...
	resultGridPrefix = "ZZ_SCPR_RD_DVW"
	detailGridPrefix = "ZZ_SCPR_PDL_DVW"

	// DateLayout is what the portal's date inputs expect.
	DateLayout = "01/02/2006"

	maxDetailLines = 200
)

var allSearchFields = []string{
	fieldDescription, fieldDept, fieldPONum, fieldAcqType,
	fieldSupplierID, fieldSupplier, fieldAcqMethod,
	fieldFromDate, fieldToDate,
}

// resultFieldMap translates grid column suffixes to SearchResult keys.
var resultFieldMap = map[string]string{
	"CRDMEM_ACCT_NBR": "po_number",
	"AWARDED_AMT":     "grand_total",
	"START_DATE":      "start_date",
	"END_DATE":        "end_date",
	"NAME1":           "supplier_name",
	"SUPPLIER_ID":     "supplier_id",
	"DESCR254_MIXED":  "first_item",
	"DESCR254":        "first_item",
	"BUSINESS_UNIT":   "dept_code",
	"DESCR":           "dept",
	"ZZ_COMMENT1":     "acq_type",
	"ZZ_ACQ_MTHD":     "acq_method",
}

// detailHeaderFields maps detail-page header element ids to Detail fields.
var detailHeaderFields = map[string]string{
	"ZZ_SCPR_SBP_WRK_BUSINESS_UNIT":   "dept_code",
	"ZZ_SCPR_SBP_WRK_DESCR":           "dept_name",
	"ZZ_SCPR_SBP_WRK_CRDMEM_ACCT_NBR": "po_number",
	"ZZ_SCPR_SBP_WRK_STATUS1":         "status",
	"ZZ_SCPR_SBP_WRK_START_DATE":      "start_date",
	"ZZ_SCPR_SBP_WRK_END_DATE":        "end_date",
	"ZZ_SCPR_SBP_WRK_NAME1":           "supplier",
	"ZZ_SCPR_SBP_WRK_ZZ_COMMENT1":     "acq_type",
	"ZZ_SCPR_SBP_WRK_ZZ_ACQ_MTHD":     "acq_method",
	"ZZ_SCPR_SBP_WRK_MERCH_AMT_TTL":   "merch_amount",
	"ZZ_SCPR_SBP_WRK_AWARDED_AMT":     "grand_total",
	"ZZ_SCPR_SBP_WRK_BUYER_DESCR":     "buyer_name",
	"ZZ_SCPR_SBP_WRK_EMAILID":         "buyer_email",
}

// Client holds one portal session. PeopleSoft hands out a per-session ICSID
// on the first page load and every subsequent POST has to echo it back, so
// a Client is good for one pull and is not safe for concurrent use.
type Client struct {
	// ctx is used for http requests only.
	ctx         context.Context
	logger      *zap.Logger
	HTTPClient  *http.Client
	UserAgent   string
	BaseURL     string
	icsid       string
	initialized bool
	lastResults *page
}

// New creates a portal client. InitSession must succeed before Search.
func New(ctx context.Context, logger *zap.Logger) *Client {
	return &Client{
		ctx:    ctx,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: userAgent,
		BaseURL:   defaultBaseURL,
	}
}

func (c *Client) searchURL() string {
	return c.BaseURL + searchPath
}

// InitSession performs the portal's double-load handshake: the first GET
// often returns a bootstrap shell, so we retry until the form (or at least
// an ICSID) shows up. Failure here is transient and aborts a pull before
// anything is written.
func (c *Client) InitSession() error {
	body, err := c.loadSearchPage(3)
	if err != nil {
		return &TransientError{Op: "init", Err: err}
	}

	c.icsid = extractICSID(body)
	if c.icsid == "" {
		return &TransientError{Op: "init", Err: fmt.Errorf("no ICSID on search page")}
	}

	c.initialized = true
	c.logger.Debug("portal session initialized")
	return nil
}

func (c *Client) loadSearchPage(attempts int) (string, error) {
	var body string
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.searchURL()+"?&", nil)
		if err != nil {
			return "", err
		}
		c.setHeaders(req)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", err
		}

		body = string(data)
		c.logger.Debug("portal page load",
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
		)
		if strings.Contains(body, "ZZ_SCPRS") || strings.Contains(body, "ICSID") {
			return body, nil
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	return "", fmt.Errorf("search form did not load after %d attempts", attempts)
}

// Search runs one description search bounded by the given date range and
// returns the parsed results grid plus the number of grid rows dropped as
// malformed. from/to are zero-value-skippable.
func (c *Client) Search(term string, from, to time.Time) ([]SearchResult, int, error) {
	if !c.initialized {
		if err := c.InitSession(); err != nil {
			return nil, 0, err
		}
	}

	// Reload the page so the state number the POST echoes back is fresh.
	pageBody, err := c.loadSearchPage(2)
	if err != nil {
		return nil, 0, &TransientError{Op: "search", Err: err}
	}
	if id := extractICSID(pageBody); id != "" {
		c.icsid = id
	}

	values := map[string]string{}
	for _, f := range allSearchFields {
		values[f] = ""
	}
	values[fieldDescription] = term
	if !from.IsZero() {
		values[fieldFromDate] = from.Format(DateLayout)
	}
	if !to.IsZero() {
		values[fieldToDate] = to.Format(DateLayout)
	}

	body, err := c.postAction(pageBody, searchButton, values)
	if err != nil {
		return nil, 0, &TransientError{Op: "search", Err: err}
	}

	results, dropped := c.parseResults(body)
	c.lastResults = parsePage(body)
	if id := extractICSID(body); id != "" {
		c.icsid = id
	}

	c.logger.Debug("portal search done",
		zap.String("term", term),
		zap.Int("results", len(results)),
		zap.Int("dropped", dropped),
	)
	return results, dropped, nil
}

// GetDetail fetches the line-item detail for a result row of the most
// recent Search. The portal models this as a click on the PO-number link,
// which is a form POST carrying the original search values.
func (c *Client) GetDetail(cursor Cursor) (*Detail, error) {
	if c.lastResults == nil {
		return nil, fmt.Errorf("detail fetch requires a prior search")
	}

	action := fmt.Sprintf("%s_CRDMEM_ACCT_NBR$%d", resultGridPrefix, cursor.RowIndex)
	values := map[string]string{}
	for _, f := range allSearchFields {
		values[f] = extractFieldValue(c.lastResults.raw, f)
	}

	body, err := c.postAction(c.lastResults.raw, action, values)
	if err != nil {
		return nil, &TransientError{Op: "detail", Err: err}
	}

	detail := parseDetail(parsePage(body))
	c.logger.Debug("portal detail parsed",
		zap.String("po", detail.PONumber),
		zap.Int("lines", len(detail.LineItems)),
	)
	return detail, nil
}

// postAction submits a PeopleSoft panel action against the search component.
func (c *Client) postAction(pageBody, action string, searchValues map[string]string) (string, error) {
	form := url.Values{}
	form.Set("ICType", "Panel")
	form.Set("ICElementNum", "0")
	form.Set("ICStateNum", extractStateNum(pageBody))
	form.Set("ICAction", action)
	form.Set("ICModelCancel", "0")
	form.Set("ICXPos", "0")
	form.Set("ICYPos", "0")
	form.Set("ResponsetoDiffFrame", "-1")
	form.Set("TargetFrameName", "None")
	form.Set("FacetPath", "None")
	form.Set("ICFocus", "")
	form.Set("ICSaveWarningFilter", "0")
	form.Set("ICChanged", "-1")
	form.Set("ICSkipPending", "0")
	form.Set("ICAutoSave", "0")
	form.Set("ICResubmit", "0")
	form.Set("ICSID", c.icsid)
	form.Set("ICActionPrompt", "false")
	form.Set("ICBcDomData", "")
	form.Set("ICPanelName", "")
	form.Set("ICFind", "")
	form.Set("ICAddCount", "")
	form.Set("ICAppClsData", "")
	for k, v := range searchValues {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.searchURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
}

// parseResults reads the results grid by element id, falling back to a
// bare table walk when the ids are absent (the portal has two render
// modes and switches between them without notice). Rows that fail to
// decode or validate are dropped and counted.
func (c *Client) parseResults(body string) ([]SearchResult, int) {
	total := resultCount(body)
	if total == 0 {
		return nil, 0
	}

	p := parsePage(body)
	suffixes := discoverGridSuffixes(p, resultGridPrefix)

	var results []SearchResult
	var dropped int
	for row := 0; row < total; row++ {
		raw := map[string]string{}
		for _, suffix := range suffixes {
			val := p.get(fmt.Sprintf("%s_%s$%d", resultGridPrefix, suffix, row))
			if val == "" {
				continue
			}
			key, ok := resultFieldMap[suffix]
			if !ok {
				key = strings.ToLower(suffix)
			}
			raw[key] = val
		}
		if len(raw) == 0 {
			// Grid rows stop at the page boundary.
			break
		}

		res, err := decodeResult(raw, row)
		if err != nil {
			c.logger.Warn("dropping undecodable result row",
				zap.Int("row", row), zap.Error(err))
			dropped++
			continue
		}
		if err := res.Validate(); err != nil {
			c.logger.Warn("dropping malformed result row",
				zap.Int("row", row), zap.Error(err))
			dropped++
			continue
		}
		results = append(results, res)
	}
	return results, dropped
}

// discoverGridSuffixes finds which columns the grid actually rendered by
// probing row 0.
func discoverGridSuffixes(p *page, prefix string) []string {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\w+)\$0$`)
	var suffixes []string
	for id := range p.text {
		if m := re.FindStringSubmatch(id); m != nil {
			suffixes = append(suffixes, m[1])
		}
	}
	return suffixes
}

func parseDetail(p *page) *Detail {
	d := &Detail{}
	header := map[string]string{}
	for id, key := range detailHeaderFields {
		if v := p.get(id); v != "" {
			header[key] = v
		}
	}
	d.PONumber = header["po_number"]
	d.DeptCode = header["dept_code"]
	d.DeptName = header["dept_name"]
	d.Institution = header["dept_name"]
	d.Supplier = header["supplier"]
	d.Status = header["status"]
	d.StartDate = header["start_date"]
	d.EndDate = header["end_date"]
	d.AcqType = header["acq_type"]
	d.AcqMethod = header["acq_method"]
	d.MerchAmount = parseDollar(header["merch_amount"])
	d.GrandTotal = parseDollar(header["grand_total"])
	d.BuyerName = header["buyer_name"]
	d.BuyerEmail = header["buyer_email"]

	for row := 0; row < maxDetailLines; row++ {
		desc := p.get(fmt.Sprintf("%s_DESCR254_MIXED$%d", detailGridPrefix, row))
		if desc == "" {
			break
		}
		line := LineItem{
			LineNum:     row,
			ItemID:      p.get(fmt.Sprintf("%s_INV_ITEM_ID$%d", detailGridPrefix, row)),
			Description: desc,
			UNSPSC:      p.get(fmt.Sprintf("%s_PV_UNSPSC_CODE$%d", detailGridPrefix, row)),
			UOM:         p.get(fmt.Sprintf("%s_DESCR$%d", detailGridPrefix, row)),
			Quantity:    parseQuantity(p.get(fmt.Sprintf("%s_QUANTITY$%d", detailGridPrefix, row))),
			UnitPrice:   parseDollar(p.get(fmt.Sprintf("%s_UNIT_PRICE$%d", detailGridPrefix, row))),
			LineTotal:   parseDollar(p.get(fmt.Sprintf("%s_LINE_TOTAL$%d", detailGridPrefix, row))),
			Status:      p.get(fmt.Sprintf("%s_DESCR1$%d", detailGridPrefix, row)),
		}
		d.LineItems = append(d.LineItems, line)
	}
	return d
}

// extractFieldValue scrapes an input's current value out of raw page HTML.
var fieldValueRes = map[string]*regexp.Regexp{}

func extractFieldValue(body, field string) string {
	re, ok := fieldValueRes[field]
	if !ok {
		re = regexp.MustCompile(`name='` + regexp.QuoteMeta(field) + `'[^>]*value="([^"]*)"`)
		fieldValueRes[field] = re
	}
	if m := re.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}
