// Package pull drives portal pulls: claiming the single-flight job slot,
// walking the product search plan for one agency, and normalizing what
// comes back into the store.
package pull

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/logger"
	"github.com/reytech/scprs-intel/internal/pricefeed"
	"github.com/reytech/scprs-intel/internal/registry"
	"github.com/reytech/scprs-intel/internal/scprs"
	"github.com/reytech/scprs-intel/internal/store"
)

// ErrPullInProgress is returned when a pull is requested while another one
// holds the job slot.
var ErrPullInProgress = store.ErrPullRunning

// Scraper is the portal surface the runner needs. scprs.Client implements
// it; tests substitute a fake.
type Scraper interface {
	InitSession() error
	Search(term string, from, to time.Time) ([]scprs.SearchResult, int, error)
	GetDetail(cursor scprs.Cursor) (*scprs.Detail, error)
}

// Runner executes pulls. A zero TermDelay or Lookback falls back to the
// defaults set by New.
type Runner struct {
	store  *store.Store
	feed   *pricefeed.Feed
	logger *zap.Logger

	newScraper func(ctx context.Context) Scraper

	// TermDelay paces requests between search terms. The portal throttles
	// aggressive clients, so keep this above a second.
	TermDelay time.Duration

	// Lookback bounds each search's date range.
	Lookback time.Duration
}

func New(s *store.Store, feed *pricefeed.Feed, logger *zap.Logger,
	newScraper func(ctx context.Context) Scraper) *Runner {
	return &Runner{
		store:      s,
		feed:       feed,
		logger:     logger,
		newScraper: newScraper,
		TermDelay:  1200 * time.Millisecond,
		Lookback:   90 * 24 * time.Hour,
	}
}

// NewScraperFactory adapts the real portal client to the Scraper factory.
// Empty baseURL or userAgent keep the client defaults.
func NewScraperFactory(logger *zap.Logger, baseURL, userAgent string) func(ctx context.Context) Scraper {
	return func(ctx context.Context) Scraper {
		c := scprs.New(ctx, logger)
		if baseURL != "" {
			c.BaseURL = baseURL
		}
		if userAgent != "" {
			c.UserAgent = userAgent
		}
		return c
	}
}

// Start claims the job slot and runs the pull in the background. The
// returned job carries the id to poll Status with.
func (r *Runner) Start(ctx context.Context, agencyCode, priorityCap string) (*store.PullJob, error) {
	agency, job, err := r.claim(ctx, agencyCode)
	if err != nil {
		return nil, err
	}
	go r.execute(context.WithoutCancel(ctx), job, agency, priorityCap)
	return job, nil
}

// Run claims the job slot and pulls synchronously.
func (r *Runner) Run(ctx context.Context, agencyCode, priorityCap string) (*store.PullJob, error) {
	agency, job, err := r.claim(ctx, agencyCode)
	if err != nil {
		return nil, err
	}
	r.execute(ctx, job, agency, priorityCap)
	return job, nil
}

func (r *Runner) claim(ctx context.Context, agencyCode string) (registry.Agency, *store.PullJob, error) {
	agency, ok := registry.FindAgency(agencyCode)
	if !ok {
		return agency, nil, fmt.Errorf("unknown agency %q", agencyCode)
	}
	job, err := r.store.ClaimPull(ctx, agency.Code)
	if err != nil {
		return agency, nil, err
	}
	return agency, job, nil
}

func (r *Runner) execute(ctx context.Context, job *store.PullJob, agency registry.Agency, priorityCap string) {
	log := r.logger.With(zap.String("job", job.ID), zap.String("agency", agency.Code))
	log.Info("pull started", zap.String("priority_cap", priorityCap))

	scraper := r.newScraper(ctx)
	if err := scraper.InitSession(); err != nil {
		// Nothing has been written yet; fail the job whole.
		job.Status = store.PullFailed
		job.Summary = fmt.Sprintf("portal session failed: %v (is the portal reachable from this network?)", err)
		if ferr := r.store.FinishPull(ctx, job); ferr != nil {
			log.Error("finish failed pull", zap.Error(ferr))
		}
		log.Error("pull aborted before any writes", zap.Error(err))
		return
	}

	terms := registry.TermsForPriority(priorityCap)
	job.Terms = len(terms)
	now := time.Now().UTC()
	from := now.Add(-r.Lookback)

	for i, term := range terms {
		if i > 0 {
			select {
			case <-time.After(r.TermDelay):
			case <-ctx.Done():
				job.Errors++
				r.logProgress(ctx, job, fmt.Sprintf("canceled after %d terms", i))
				r.finish(ctx, job, agency, now)
				return
			}
		}
		r.pullTerm(ctx, job, agency, term, from, now, scraper)
	}

	r.finish(ctx, job, agency, now)
	log.Info("pull finished",
		zap.Int("new_pos", job.NewPOs),
		zap.Int("new_lines", job.NewLines),
		zap.Int("price_rows", job.PriceRows),
		zap.Int("errors", job.Errors),
	)
}

func (r *Runner) pullTerm(ctx context.Context, job *store.PullJob, agency registry.Agency,
	term registry.ProductTerm, from, to time.Time, scraper Scraper) {

	results, dropped, err := scraper.Search(term.Term, from, to)
	if err != nil {
		job.Errors++
		r.logProgress(ctx, job, fmt.Sprintf("search %q failed: %v", term.Term, err))
		return
	}
	if dropped > 0 {
		job.Errors += dropped
		r.logProgress(ctx, job, fmt.Sprintf("term %q: dropped %d malformed rows", term.Term, dropped))
	}

	for _, res := range results {
		if !agency.Matches(res.DeptCode, res.DeptName) {
			continue
		}
		if err := r.ingest(ctx, job, agency, term, res, scraper); err != nil {
			job.Errors++
			r.logProgress(ctx, job, fmt.Sprintf("ingest %s failed: %v", res.PONumber, err))
		}
	}
	r.logProgress(ctx, job, fmt.Sprintf("term %q: %d results", term.Term, len(results)))
}

func (r *Runner) ingest(ctx context.Context, job *store.PullJob, agency registry.Agency,
	term registry.ProductTerm, res scprs.SearchResult, scraper Scraper) error {

	detail, err := scraper.GetDetail(res.Cursor)
	if err != nil {
		return err
	}

	po := store.PurchaseOrder{
		PONumber:    res.PONumber,
		DeptCode:    res.DeptCode,
		DeptName:    res.DeptName,
		Institution: res.Institution,
		AgencyCode:  agency.Code,
		SearchTerm:  term.Term,
		Supplier:    res.SupplierName,
		SupplierID:  res.SupplierID,
		Status:      res.Status,
		AcqType:     res.AcqType,
		AcqMethod:   res.AcqMethod,
		StartDate:   res.StartDateRaw,
		EndDate:     res.EndDateRaw,
		GrandTotal:  res.GrandTotal,
	}

	var lines []store.LineItem
	for _, li := range detail.LineItems {
		cls := registry.Classify(li.Description)
		lines = append(lines, store.LineItem{
			PONumber:    po.PONumber,
			LineNum:     li.LineNum,
			ItemID:      li.ItemID,
			Description: li.Description,
			UNSPSC:      li.UNSPSC,
			UOM:         li.UOM,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
			Category:    cls.Category,
			Sells:       cls.Sells,
			Opportunity: cls.Opportunity,
			Status:      li.Status,
		})
	}

	result, err := r.store.UpsertPO(ctx, po, lines)
	if err != nil {
		return err
	}
	if result.IsNew {
		job.NewPOs++
		r.logger.Debug("new award",
			zap.String("po", po.PONumber),
			zap.String("supplier", po.Supplier),
			zap.String("first_item", logger.Truncate(res.FirstItem, 80)),
		)
		if err := r.store.RecordAward(ctx, po.Supplier, po.SupplierID, po.GrandTotal); err != nil {
			return err
		}
	}
	job.NewLines += result.LinesAdded

	for _, li := range lines {
		inserted, err := r.feed.Record(ctx, store.PriceObservation{
			Description: li.Description,
			Category:    li.Category,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			UOM:         li.UOM,
			Supplier:    po.Supplier,
			AgencyCode:  po.AgencyCode,
			PONumber:    po.PONumber,
			LineNum:     li.LineNum,
			Source:      store.SourceMarketPull,
		})
		if err != nil {
			return err
		}
		if inserted {
			job.PriceRows++
		}
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, job *store.PullJob, agency registry.Agency, pulledAt time.Time) {
	job.Status = store.PullDone
	job.Summary = fmt.Sprintf("%d new POs, %d new lines, %d price rows, %d errors",
		job.NewPOs, job.NewLines, job.PriceRows, job.Errors)
	if err := r.store.FinishPull(ctx, job); err != nil {
		r.logger.Error("finish pull", zap.Error(err))
	}

	next := pulledAt.Add(time.Duration(agency.PullCadenceHours) * time.Hour)
	if err := r.store.MarkPulled(ctx, agency.Code, next); err != nil {
		r.logger.Error("schedule next pull", zap.Error(err))
	}
}

func (r *Runner) logProgress(ctx context.Context, job *store.PullJob, msg string) {
	if err := r.store.AppendPullLog(ctx, job.ID, msg); err != nil {
		r.logger.Warn("append pull log", zap.Error(err))
	}
}

// Status reports the latest pull job and its progress log.
type Status struct {
	Job *store.PullJob `json:"job"`
	Log []string       `json:"log"`
}

// Status returns the most recent job, running or finished, or a nil job
// when no pull has ever run.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	job, err := r.store.LatestPull(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &Status{}, nil
	}
	log, err := r.store.PullLog(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &Status{Job: job, Log: log}, nil
}
