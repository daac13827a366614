package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/easydeed/reportscompany-sub005/internal/models"
	"github.com/easydeed/reportscompany-sub005/internal/recurrence"
	"github.com/easydeed/reportscompany-sub005/internal/repository"
	"github.com/easydeed/reportscompany-sub005/pkg/export"
	"github.com/easydeed/reportscompany-sub005/pkg/jobs"
	"github.com/easydeed/reportscompany-sub005/pkg/mailer"
	"github.com/easydeed/reportscompany-sub005/pkg/storage"
)

type dueScheduleStore interface {
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)
	MarkExecuted(ctx context.Context, id string, ranAt time.Time, observedNextRun time.Time, nextRun time.Time) (bool, error)
	SetActive(ctx context.Context, id string, active bool, nextRun *time.Time) error
}

type runStore interface {
	Create(ctx context.Context, run *models.ReportRun) error
	GetByID(ctx context.Context, id string) (*models.ReportRun, error)
	Update(ctx context.Context, id string, params repository.UpdateRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportRun, error)
}

type runDispatcher interface {
	Enqueue(job jobs.Job) error
}

type artifactStore interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// RecipientResolver turns schedule recipients into deliverable addresses.
// Contact and group entries live in an external contacts system.
type RecipientResolver interface {
	ResolveEmails(ctx context.Context, list models.RecipientList) ([]string, error)
}

// EmailOnlyResolver handles literal email recipients and skips directory
// entries it cannot resolve without the contacts system.
type EmailOnlyResolver struct {
	logger *zap.Logger
}

// NewEmailOnlyResolver constructs the resolver.
func NewEmailOnlyResolver(logger *zap.Logger) *EmailOnlyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailOnlyResolver{logger: logger}
}

// ResolveEmails returns the literal email addresses in the list.
func (r *EmailOnlyResolver) ResolveEmails(ctx context.Context, list models.RecipientList) ([]string, error) {
	emails := make([]string, 0, len(list))
	for _, recipient := range list {
		if recipient.Kind == models.RecipientKindEmail && recipient.Email != "" {
			emails = append(emails, recipient.Email)
			continue
		}
		r.logger.Warn("skipping unresolvable recipient",
			zap.String("kind", string(recipient.Kind)),
			zap.String("contact_id", recipient.ContactID),
			zap.String("group_id", recipient.GroupID))
	}
	return emails, nil
}

// RunnerServiceConfig governs the due-scan and delivery behaviour.
type RunnerServiceConfig struct {
	TickSpec        string
	ClaimBatchSize  int
	RunLockTTL      time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	APIPrefix       string
}

// RunnerService drives schedule execution: it scans for due schedules on a
// cron tick, claims each slot exactly once, and delivers the rendered report
// through the worker queue.
type RunnerService struct {
	schedules dueScheduleStore
	runs      runStore
	queue     runDispatcher
	cache     *CacheService
	metrics   *MetricsService
	listings  ListingSource
	resolver  RecipientResolver
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	artifacts artifactStore
	signer    *storage.SignedURLSigner
	mail      mailer.Sender
	logger    *zap.Logger
	cfg       RunnerServiceConfig

	cron *cron.Cron
}

// NewRunnerService constructs the runner.
func NewRunnerService(
	schedules dueScheduleStore,
	runs runStore,
	queue runDispatcher,
	cache *CacheService,
	metrics *MetricsService,
	listings ListingSource,
	resolver RecipientResolver,
	artifacts artifactStore,
	signer *storage.SignedURLSigner,
	mail mailer.Sender,
	logger *zap.Logger,
	cfg RunnerServiceConfig,
) *RunnerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickSpec == "" {
		cfg.TickSpec = "@every 1m"
	}
	if cfg.ClaimBatchSize <= 0 {
		cfg.ClaimBatchSize = 50
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 10 * time.Minute
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if resolver == nil {
		resolver = NewEmailOnlyResolver(logger)
	}
	return &RunnerService{
		schedules: schedules,
		runs:      runs,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		listings:  listings,
		resolver:  resolver,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		artifacts: artifacts,
		signer:    signer,
		mail:      mail,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetQueue wires the delivery queue. The queue's handler is Deliver, so the
// two are constructed in sequence and joined here before Start.
func (s *RunnerService) SetQueue(queue runDispatcher) {
	s.queue = queue
}

// Start schedules the periodic due-scan.
func (s *RunnerService) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.TickSpec, func() {
		if err := s.Tick(ctx, time.Now()); err != nil {
			s.logger.Error("due scan failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register runner tick: %w", err)
	}
	s.cron.Start()
	s.logger.Info("runner started", zap.String("tick", s.cfg.TickSpec))
	return nil
}

// Stop halts the due-scan and waits for an in-flight tick.
func (s *RunnerService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("runner stopped")
}

// Tick claims every due schedule and enqueues a delivery for each claimed slot.
func (s *RunnerService) Tick(ctx context.Context, now time.Time) error {
	due, err := s.schedules.ListDue(ctx, now, s.cfg.ClaimBatchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	for i := range due {
		schedule := due[i]
		if err := s.claimAndEnqueue(ctx, &schedule, now); err != nil {
			s.logger.Error("failed to dispatch due schedule",
				zap.String("schedule_id", schedule.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *RunnerService) claimAndEnqueue(ctx context.Context, schedule *models.Schedule, now time.Time) error {
	if schedule.NextRunAt == nil {
		return nil
	}

	if !s.cache.AcquireRunLock(ctx, schedule.ID, s.cfg.RunLockTTL) {
		return nil
	}
	defer s.cache.ReleaseRunLock(ctx, schedule.ID)

	next, err := recurrence.NextOccurrence(*schedule, now)
	if err != nil {
		var invariant *recurrence.InvariantError
		if errors.As(err, &invariant) {
			// A stored row that stopped satisfying the recurrence rules
			// can never fire again. Park it instead of retrying forever.
			s.logger.Error("pausing inconsistent schedule",
				zap.String("schedule_id", schedule.ID),
				zap.String("reason", invariant.Reason))
			return s.schedules.SetActive(ctx, schedule.ID, false, nil)
		}
		return fmt.Errorf("compute next run: %w", err)
	}

	claimed, err := s.schedules.MarkExecuted(ctx, schedule.ID, now, *schedule.NextRunAt, next)
	if err != nil {
		return fmt.Errorf("claim schedule slot: %w", err)
	}
	if !claimed {
		return nil
	}

	s.metrics.RunStarted()

	run := &models.ReportRun{
		ScheduleID:   schedule.ID,
		AccountID:    schedule.AccountID,
		ReportType:   schedule.ReportType,
		ScheduledFor: *schedule.NextRunAt,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("create run row: %w", err)
	}

	if err := s.queue.Enqueue(jobs.Job{RunID: run.ID, ScheduleID: schedule.ID}); err != nil {
		// The queued-run recovery scan picks the row up on restart.
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	s.logger.Info("schedule slot claimed",
		zap.String("schedule_id", schedule.ID),
		zap.String("run_id", run.ID),
		zap.Time("scheduled_for", run.ScheduledFor),
		zap.Time("next_run_at", next))
	return nil
}

// Deliver is the queue handler: it renders the report for one claimed run
// and emails it to the resolved recipients.
func (s *RunnerService) Deliver(ctx context.Context, job jobs.Job) error {
	run, err := s.runs.GetByID(ctx, job.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", job.RunID, err)
	}
	if run.Status == models.RunStatusSent {
		return nil
	}

	started := time.Now().UTC()
	processing := models.RunStatusProcessing
	if err := s.runs.Update(ctx, run.ID, repository.UpdateRunParams{Status: &processing, StartedAt: &started}); err != nil {
		return fmt.Errorf("mark run processing: %w", err)
	}

	if err := s.deliver(ctx, run); err != nil {
		s.failRun(ctx, run, err)
		s.metrics.RunFinished(string(run.ReportType), false, time.Since(started))
		return err
	}

	s.metrics.RunFinished(string(run.ReportType), true, time.Since(started))
	return nil
}

func (s *RunnerService) deliver(ctx context.Context, run *models.ReportRun) error {
	schedule, err := s.schedules.GetByID(ctx, run.ScheduleID)
	if err != nil {
		return fmt.Errorf("load schedule %s: %w", run.ScheduleID, err)
	}

	emails, err := s.resolver.ResolveEmails(ctx, schedule.Recipients)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	if len(emails) == 0 {
		return fmt.Errorf("schedule %s has no deliverable recipients", schedule.ID)
	}

	listings, err := s.listings.FetchListings(ctx, schedule.Area, schedule.ReportType, schedule.LookbackDays)
	if err != nil {
		return fmt.Errorf("fetch listings: %w", err)
	}

	dataset := buildDataset(schedule.ReportType, listings)
	title := reportTitle(schedule.ReportType)
	subtitle := fmt.Sprintf("%s, last %d days", describeArea(schedule.Area), schedule.LookbackDays)
	generatedAt := time.Now().UTC()

	csvData, err := s.csv.Render(dataset)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	pdfData, err := s.pdf.Render(dataset, title, subtitle, generatedAt)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	baseName := fmt.Sprintf("%s_%s", run.ID, generatedAt.Format("20060102T150405"))
	pdfName := baseName + ".pdf"
	csvName := baseName + ".csv"
	if _, err := s.artifacts.Save(pdfName, pdfData); err != nil {
		return fmt.Errorf("store pdf artifact: %w", err)
	}
	if _, err := s.artifacts.Save(csvName, csvData); err != nil {
		return fmt.Errorf("store csv artifact: %w", err)
	}

	token, _, err := s.signer.Generate(run.ID, pdfName)
	if err != nil {
		return fmt.Errorf("sign artifact url: %w", err)
	}
	artifactURL := fmt.Sprintf("%s/reports/%s/artifact?token=%s", s.cfg.APIPrefix, run.ID, token)

	msg := mailer.Message{
		To:      emails,
		Subject: fmt.Sprintf("%s: %s", title, describeArea(schedule.Area)),
		HTMLBody: fmt.Sprintf(
			"<p>Your scheduled <strong>%s</strong> report for %s is attached.</p><p><a href=%q>Download the report</a> (link valid for a limited time).</p>",
			title, describeArea(schedule.Area), artifactURL),
		Attachments: []mailer.Attachment{
			{Filename: pdfName, ContentType: "application/pdf", Data: pdfData},
			{Filename: csvName, ContentType: "text/csv", Data: csvData},
		},
	}
	if err := s.mail.Send(msg); err != nil {
		return fmt.Errorf("send report email: %w", err)
	}

	sent := models.RunStatusSent
	finished := time.Now().UTC()
	recipients := len(emails)
	if err := s.runs.Update(ctx, run.ID, repository.UpdateRunParams{
		Status:      &sent,
		ArtifactURL: &artifactURL,
		Recipients:  &recipients,
		FinishedAt:  &finished,
	}); err != nil {
		return fmt.Errorf("mark run sent: %w", err)
	}

	s.logger.Info("report delivered",
		zap.String("run_id", run.ID),
		zap.String("schedule_id", schedule.ID),
		zap.Int("recipients", recipients))
	return nil
}

func (s *RunnerService) failRun(ctx context.Context, run *models.ReportRun, cause error) {
	failed := models.RunStatusFailed
	finished := time.Now().UTC()
	message := cause.Error()
	if err := s.runs.Update(ctx, run.ID, repository.UpdateRunParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &finished,
	}); err != nil {
		s.logger.Error("failed to record run failure", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// RecoverQueuedRuns re-enqueues runs that were claimed but never delivered,
// typically after a restart dropped the in-memory queue.
func (s *RunnerService) RecoverQueuedRuns(ctx context.Context) error {
	queued, err := s.runs.ListQueued(ctx, s.cfg.ClaimBatchSize)
	if err != nil {
		return fmt.Errorf("list queued runs: %w", err)
	}
	for _, run := range queued {
		if err := s.queue.Enqueue(jobs.Job{RunID: run.ID, ScheduleID: run.ScheduleID}); err != nil {
			return fmt.Errorf("requeue run %s: %w", run.ID, err)
		}
		s.logger.Info("requeued orphaned run", zap.String("run_id", run.ID))
	}
	return nil
}

// StartCleanup purges expired artifacts on the configured interval until the
// context is cancelled.
func (s *RunnerService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 || s.cfg.ResultTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.artifacts.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Error("artifact cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired artifacts removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func reportTitle(t models.ReportType) string {
	switch t {
	case models.ReportTypeMarketSnapshot:
		return "Market Snapshot"
	case models.ReportTypeNewListings:
		return "New Listings"
	case models.ReportTypeInventory:
		return "Inventory Report"
	case models.ReportTypeClosedSales:
		return "Closed Sales"
	case models.ReportTypePriceBands:
		return "Price Bands"
	case models.ReportTypeOpenHouses:
		return "Open Houses"
	case models.ReportTypeNewListingsGallery:
		return "New Listings Gallery"
	case models.ReportTypeFeaturedListings:
		return "Featured Listings"
	default:
		return "Market Report"
	}
}

func describeArea(a models.AreaSelector) string {
	if a.Kind == models.AreaKindZips {
		return "ZIP " + strings.Join(a.ZipCodes, ", ")
	}
	if a.City != nil {
		return *a.City
	}
	return "selected area"
}

func formatPrice(v int64) string {
	return "$" + groupDigits(strconv.FormatInt(v, 10))
}

func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// buildDataset shapes listings into the table each report type renders.
// Aggregate reports summarise; listing reports tabulate rows directly.
func buildDataset(t models.ReportType, listings []models.Listing) export.Dataset {
	switch t {
	case models.ReportTypeMarketSnapshot, models.ReportTypeInventory:
		return summaryDataset(listings)
	case models.ReportTypePriceBands:
		return priceBandDataset(listings)
	case models.ReportTypeClosedSales:
		return listingDataset(listings, true)
	default:
		return listingDataset(listings, false)
	}
}

func listingDataset(listings []models.Listing, withClose bool) export.Dataset {
	headers := []string{"MLS #", "Address", "City", "ZIP", "Status", "List Price", "Beds", "Baths", "SqFt"}
	if withClose {
		headers = append(headers, "Close Price")
	}
	rows := make([]map[string]string, 0, len(listings))
	for _, l := range listings {
		row := map[string]string{
			"MLS #":      l.MLSNumber,
			"Address":    l.Address,
			"City":       l.City,
			"ZIP":        l.Zip,
			"Status":     l.Status,
			"List Price": formatPrice(l.ListPrice),
			"Beds":       strconv.Itoa(l.Beds),
			"Baths":      strconv.FormatFloat(l.Baths, 'f', -1, 64),
			"SqFt":       strconv.Itoa(l.SquareFeet),
		}
		if withClose {
			row["Close Price"] = formatPrice(l.ClosePrice)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func summaryDataset(listings []models.Listing) export.Dataset {
	counts := map[string]int{}
	var totalPrice int64
	for _, l := range listings {
		counts[l.Status]++
		totalPrice += l.ListPrice
	}
	rows := []map[string]string{
		{"Metric": "Total Listings", "Value": strconv.Itoa(len(listings))},
	}
	for _, status := range []string{"Active", "Pending", "Closed"} {
		if n, ok := counts[status]; ok {
			rows = append(rows, map[string]string{"Metric": status, "Value": strconv.Itoa(n)})
		}
	}
	if len(listings) > 0 {
		rows = append(rows, map[string]string{
			"Metric": "Average List Price",
			"Value":  formatPrice(totalPrice / int64(len(listings))),
		})
	}
	return export.Dataset{Headers: []string{"Metric", "Value"}, Rows: rows}
}

var priceBands = []struct {
	label string
	upper int64
}{
	{"Under $500K", 500_000},
	{"$500K-$1M", 1_000_000},
	{"$1M-$2M", 2_000_000},
	{"Over $2M", 1<<63 - 1},
}

func priceBandDataset(listings []models.Listing) export.Dataset {
	counts := make([]int, len(priceBands))
	for _, l := range listings {
		for i, band := range priceBands {
			if l.ListPrice < band.upper {
				counts[i]++
				break
			}
		}
	}
	rows := make([]map[string]string, 0, len(priceBands))
	for i, band := range priceBands {
		rows = append(rows, map[string]string{
			"Price Band": band.label,
			"Listings":   strconv.Itoa(counts[i]),
		})
	}
	return export.Dataset{Headers: []string{"Price Band", "Listings"}, Rows: rows}
}
