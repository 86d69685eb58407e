package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/googleads"
	"github.com/ManuelReschke/AdInsights/internal/pkg/metaads"
)

// WindowDays is the length of every fetch window.
const WindowDays = 7

var (
	ErrPendingAccount = errors.New("ingestion: ad account has not been selected")
	ErrAllBreakdowns  = errors.New("ingestion: every breakdown request failed")
	// ErrStore marks failures of the fact writes, as opposed to vendor errors.
	ErrStore = errors.New("ingestion: storing facts failed")
)

// GoogleSource streams the Google Ads segment report; *googleads.Session implements it.
type GoogleSource interface {
	StreamCampaignSegments(ctx context.Context, customerID string, from, to time.Time, fn func([]googleads.Row) error) error
}

// MetaSource returns Meta insights for one breakdown; *metaads.Session implements it.
type MetaSource interface {
	Insights(ctx context.Context, adAccountID, breakdown string, from, to time.Time) ([]metaads.InsightRow, error)
}

// Window is an inclusive range of UTC days.
type Window struct {
	From time.Time
	To   time.Time
}

// TrailingWindow covers the seven days ending yesterday.
func TrailingWindow(now time.Time) Window {
	yesterday := models.FactDate(now.UTC()).AddDate(0, 0, -1)
	return Window{From: yesterday.AddDate(0, 0, -(WindowDays - 1)), To: yesterday}
}

// Result summarizes one fetch run.
type Result struct {
	Platform         models.Platform
	Window           Window
	RowsReceived     int
	FactsWritten     int
	BatchesCommitted int
	OverallRows      int
	FailedBreakdowns []string
}

// Partial reports whether some breakdowns failed while others were stored.
func (r *Result) Partial() bool {
	return len(r.FailedBreakdowns) > 0
}

// NoDeviceData is true when no overall row could be derived.
func (r *Result) NoDeviceData() bool {
	return r.OverallRows == 0
}

type Runner struct {
	facts repository.CampaignFactRepository
	now   func() time.Time
}

func NewRunner(facts repository.CampaignFactRepository, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{facts: facts, now: now}
}

var googleDimensions = []string{
	models.BreakdownDevice, models.BreakdownCountry, models.BreakdownAgeRange, models.BreakdownGender,
}

// FetchGoogle pulls the trailing window for a Google Ads integration, stores one batch per
// breakdown dimension and rolls the device rows up into overall rows.
func (r *Runner) FetchGoogle(ctx context.Context, integ *models.Integration, src GoogleSource) (*Result, error) {
	if integ.NeedsAccountSelection() {
		return nil, ErrPendingAccount
	}
	w := TrailingWindow(r.now())
	res := &Result{Platform: models.PlatformGoogleAds, Window: w}
	agg := newAggregate(integ.ID, models.PlatformGoogleAds)

	err := src.StreamCampaignSegments(ctx, integ.AdAccountID, w.From, w.To, func(rows []googleads.Row) error {
		for _, row := range rows {
			res.RowsReceived++
			date, err := time.Parse("2006-01-02", row.Date)
			if err != nil {
				log.Printf("[Ingestion] skip google row campaign=%s: bad date %q", row.CampaignID, row.Date)
				continue
			}
			spend := decimal.New(row.CostMicros, -6)
			values := map[string]string{
				models.BreakdownDevice:   GoogleDevice(row.Device),
				models.BreakdownCountry:  GoogleCountry(row.Country),
				models.BreakdownAgeRange: GoogleAgeRange(row.AgeRange),
				models.BreakdownGender:   GoogleGender(row.Gender),
			}
			for _, dim := range googleDimensions {
				k := factKey{campaignID: row.CampaignID, date: date, breakdownType: dim, breakdownValue: values[dim]}
				agg.add(k, row.CampaignName, row.Impressions, row.Clicks, spend, row.Conversions)
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("google ads report for integration %d: %w", integ.ID, err)
	}

	var batchErr error
	deviceStored := false
	for _, dim := range googleDimensions {
		batch := agg.facts(dim)
		if err := r.facts.UpsertBatch(batch); err != nil {
			batchErr = fmt.Errorf("%w: google %s batch: %w", ErrStore, dim, err)
			break
		}
		if dim == models.BreakdownDevice {
			deviceStored = true
		}
		res.FactsWritten += len(batch)
		res.BatchesCommitted++
	}
	if !deviceStored {
		return res, batchErr
	}

	// committed device rows must always be reflected in the overall rows
	written, err := r.facts.RecomputeOverallBatch(integ.ID, models.PlatformGoogleAds, agg.deviceDays())
	if err != nil {
		return res, errors.Join(batchErr, fmt.Errorf("%w: google overall rollup: %w", ErrStore, err))
	}
	res.OverallRows = written
	if batchErr != nil {
		return res, batchErr
	}
	log.Printf("[Ingestion] google integration=%d rows=%d facts=%d overall=%d", integ.ID, res.RowsReceived, res.FactsWritten, written)
	return res, nil
}

type metaDimension struct {
	breakdown     string
	breakdownType string
	normalize     func(string) string
}

var metaDimensions = []metaDimension{
	{breakdown: metaads.BreakdownDevicePlatform, breakdownType: models.BreakdownDevice, normalize: MetaDevice},
	{breakdown: metaads.BreakdownCountry, breakdownType: models.BreakdownCountry, normalize: MetaCountry},
	{breakdown: metaads.BreakdownAge, breakdownType: models.BreakdownAgeRange, normalize: MetaAgeRange},
	{breakdown: metaads.BreakdownGender, breakdownType: models.BreakdownGender, normalize: MetaGender},
}

// FetchMeta requests each breakdown separately. A failing breakdown is recorded and skipped;
// an expired token aborts the run since every further call would fail the same way.
func (r *Runner) FetchMeta(ctx context.Context, integ *models.Integration, src MetaSource) (*Result, error) {
	if integ.NeedsAccountSelection() {
		return nil, ErrPendingAccount
	}
	w := TrailingWindow(r.now())
	res := &Result{Platform: models.PlatformMetaAds, Window: w}
	agg := newAggregate(integ.ID, models.PlatformMetaAds)

	for _, dim := range metaDimensions {
		rows, err := src.Insights(ctx, integ.AdAccountID, dim.breakdown, w.From, w.To)
		if err != nil {
			if metaads.IsTokenExpired(err) {
				return res, fmt.Errorf("meta insights for integration %d: %w", integ.ID, err)
			}
			log.Printf("[Ingestion] meta integration=%d breakdown=%s failed: %v", integ.ID, dim.breakdown, err)
			res.FailedBreakdowns = append(res.FailedBreakdowns, dim.breakdown)
			continue
		}
		for _, row := range rows {
			res.RowsReceived++
			date, err := time.Parse("2006-01-02", row.DateStart)
			if err != nil {
				log.Printf("[Ingestion] skip meta row campaign=%s: bad date %q", row.CampaignID, row.DateStart)
				continue
			}
			k := factKey{campaignID: row.CampaignID, date: date, breakdownType: dim.breakdownType, breakdownValue: dim.normalize(row.BreakdownValue)}
			agg.add(k, row.CampaignName, row.Impressions, row.Clicks, row.Spend, float64(row.Conversions))
		}
		batch := agg.facts(dim.breakdownType)
		if err := r.facts.UpsertBatch(batch); err != nil {
			log.Printf("[Ingestion] meta integration=%d breakdown=%s store failed: %v", integ.ID, dim.breakdown, err)
			res.FailedBreakdowns = append(res.FailedBreakdowns, dim.breakdown)
			continue
		}
		res.FactsWritten += len(batch)
		res.BatchesCommitted++
	}

	if res.BatchesCommitted == 0 {
		return res, ErrAllBreakdowns
	}

	written, err := r.facts.RecomputeOverallBatch(integ.ID, models.PlatformMetaAds, agg.deviceDays())
	if err != nil {
		return res, fmt.Errorf("%w: meta overall rollup: %w", ErrStore, err)
	}
	res.OverallRows = written
	log.Printf("[Ingestion] meta integration=%d rows=%d facts=%d overall=%d failed=%v",
		integ.ID, res.RowsReceived, res.FactsWritten, written, res.FailedBreakdowns)
	return res, nil
}
