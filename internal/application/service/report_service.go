package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/workflow"
)

const day = 24 * time.Hour

// ReportFilter narrows every report. Days counts back from now on
// created_at; zero means all time.
type ReportFilter struct {
	Days     int
	Variants []string
}

// StepPair names two steps whose exit entries are compared
type StepPair struct {
	From workflow.Step `json:"from"`
	To   workflow.Step `json:"to"`
}

// DefaultStepPairs returns consecutive pairs of the steps that record an exit
func DefaultStepPairs() []StepPair {
	steps := workflow.Steps()
	// fertig has no exit entry
	steps = steps[:len(steps)-1]

	pairs := make([]StepPair, 0, len(steps)-1)
	for i := 1; i < len(steps); i++ {
		pairs = append(pairs, StepPair{From: steps[i-1], To: steps[i]})
	}
	return pairs
}

// Summary holds the headline numbers of the dashboard
type Summary struct {
	Total           int         `json:"total"`
	InProgress      int         `json:"in_progress"`
	Rejected        int         `json:"rejected"`
	Completed       int         `json:"completed"`
	SuccessRate     float64     `json:"success_rate"`
	AvgLeadTimeDays float64     `json:"avg_lead_time_days"`
	LeadTimeSamples int         `json:"lead_time_samples"`
	Diagnostics     Diagnostics `json:"diagnostics"`
}

// FunnelStage is one step of the funnel. AtStep and AtOrPast count active
// locations only. Reached also counts completed locations and includes
// locations that moved past an optional step without visiting it.
type FunnelStage struct {
	Step     workflow.Step `json:"step"`
	AtStep   int           `json:"at_step"`
	AtOrPast int           `json:"at_or_past"`
	Reached  int           `json:"reached"`
}

// Funnel counts locations per pipeline position
type Funnel struct {
	Stages      []FunnelStage `json:"stages"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

// StepDuration is the average time between two exit entries
type StepDuration struct {
	From    workflow.Step `json:"from"`
	To      workflow.Step `json:"to"`
	AvgDays float64       `json:"avg_days"`
	Samples int           `json:"samples"`
}

// Counts groups locations by status, step and variant
type Counts struct {
	Groups      []port.GroupCount `json:"groups"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// IntakeDay is the number of locations created on one UTC calendar day
type IntakeDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DiagnosticGroup describes locations holding one unexpected value
type DiagnosticGroup struct {
	Value       string   `json:"value"`
	Count       int      `json:"count"`
	LocationIDs []string `json:"location_ids"`
}

// Diagnostics lists stored values the pipeline does not recognize. Those
// locations still count towards totals.
type Diagnostics struct {
	UnknownSteps        []DiagnosticGroup `json:"unknown_steps"`
	UnknownStatuses     []DiagnosticGroup `json:"unknown_statuses"`
	InconsistentRecords []DiagnosticGroup `json:"inconsistent_records"`
}

// Empty reports whether nothing unexpected was found
func (d Diagnostics) Empty() bool {
	return len(d.UnknownSteps) == 0 && len(d.UnknownStatuses) == 0 && len(d.InconsistentRecords) == 0
}

// ReportService provides the read-only reporting surface. Each report reads
// from a single snapshot.
type ReportService interface {
	Counts(ctx context.Context, filter ReportFilter) (*Counts, error)
	Summary(ctx context.Context, filter ReportFilter) (*Summary, error)
	Funnel(ctx context.Context, filter ReportFilter) (*Funnel, error)
	Durations(ctx context.Context, filter ReportFilter, pairs []StepPair) ([]StepDuration, error)
	Intake(ctx context.Context, filter ReportFilter) ([]IntakeDay, error)
}

type reportServiceImpl struct {
	reports   port.ReportRepository
	locations port.LocationRepository
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// ReportOption configures the report service
type ReportOption func(*reportServiceImpl)

// WithReportClock overrides the time source used for timeframes
func WithReportClock(now func() time.Time) ReportOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// NewReportService creates a new ReportService
func NewReportService(
	reports port.ReportRepository,
	locations port.LocationRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...ReportOption,
) ReportService {
	s := &reportServiceImpl{
		reports:   reports,
		locations: locations,
		txManager: txManager,
		logger:    loggerOrNop(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *reportServiceImpl) locationFilter(f ReportFilter) entity.LocationFilter {
	lf := entity.LocationFilter{Variants: f.Variants}
	if f.Days > 0 {
		since := s.now().Add(-time.Duration(f.Days) * day)
		lf.CreatedSince = &since
	}
	return lf
}

func (s *reportServiceImpl) read(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := s.txManager.WithReadTransaction(ctx, fn); err != nil {
		s.logger.Error("Failed to build report", "report", name, "error", err)
		return fmt.Errorf("%s report: %w", name, err)
	}
	return nil
}

// Counts returns location counts per (status, current_step, variant)
func (s *reportServiceImpl) Counts(ctx context.Context, filter ReportFilter) (*Counts, error) {
	lf := s.locationFilter(filter)
	result := &Counts{}

	err := s.read(ctx, "counts", func(txCtx context.Context) error {
		groups, err := s.reports.CountByGroup(txCtx, lf)
		if err != nil {
			return err
		}
		result.Groups = groups
		result.Diagnostics, err = s.diagnose(txCtx, lf, groups)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Summary returns totals, success rate and average lead time
func (s *reportServiceImpl) Summary(ctx context.Context, filter ReportFilter) (*Summary, error) {
	lf := s.locationFilter(filter)
	result := &Summary{}

	err := s.read(ctx, "summary", func(txCtx context.Context) error {
		groups, err := s.reports.CountByGroup(txCtx, lf)
		if err != nil {
			return err
		}
		for _, g := range groups {
			result.Total += g.Count
			switch workflow.Status(g.Status) {
			case workflow.StatusActive:
				result.InProgress += g.Count
			case workflow.StatusRejected:
				result.Rejected += g.Count
			case workflow.StatusCompleted:
				result.Completed += g.Count
			}
		}
		if decided := result.Completed + result.Rejected; decided > 0 {
			result.SuccessRate = float64(result.Completed) / float64(decided)
		}

		entries, err := s.reports.ListHistory(txCtx, lf)
		if err != nil {
			return err
		}
		lead := StepPair{From: workflow.StepErfassung, To: workflow.StepFertigstellung}
		result.AvgLeadTimeDays, result.LeadTimeSamples = averageGap(groupByLocation(entries), lead, firstExit)

		result.Diagnostics, err = s.diagnose(txCtx, lf, groups)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Funnel counts active locations at and past each step, plus the
// non-rejected locations that have reached it
func (s *reportServiceImpl) Funnel(ctx context.Context, filter ReportFilter) (*Funnel, error) {
	lf := s.locationFilter(filter)
	result := &Funnel{}

	err := s.read(ctx, "funnel", func(txCtx context.Context) error {
		groups, err := s.reports.CountByGroup(txCtx, lf)
		if err != nil {
			return err
		}
		result.Stages = funnelStages(groups)
		result.Diagnostics, err = s.diagnose(txCtx, lf, groups)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func funnelStages(groups []port.GroupCount) []FunnelStage {
	steps := workflow.Steps()
	stages := make([]FunnelStage, len(steps))
	for i, step := range steps {
		stages[i].Step = step
	}

	for _, g := range groups {
		status := workflow.Status(g.Status)
		step := workflow.Step(g.Step)
		if status == workflow.StatusRejected || step.IsRejection() {
			continue
		}

		pos, ok := step.Index()
		if status == workflow.StatusCompleted {
			pos, ok = len(steps)-1, true
		}
		if !ok {
			continue
		}

		active := status == workflow.StatusActive
		for i := 0; i <= pos; i++ {
			stages[i].Reached += g.Count
			if active {
				stages[i].AtOrPast += g.Count
			}
		}
		if active {
			stages[pos].AtStep += g.Count
		}
	}
	return stages
}

// Durations returns the average days between the exit entries of each pair.
// Locations missing either step are skipped for that pair.
func (s *reportServiceImpl) Durations(ctx context.Context, filter ReportFilter, pairs []StepPair) ([]StepDuration, error) {
	if len(pairs) == 0 {
		pairs = DefaultStepPairs()
	}
	lf := s.locationFilter(filter)
	result := make([]StepDuration, 0, len(pairs))

	err := s.read(ctx, "durations", func(txCtx context.Context) error {
		entries, err := s.reports.ListHistory(txCtx, lf)
		if err != nil {
			return err
		}
		byLocation := groupByLocation(entries)

		for _, p := range pairs {
			avg, n := averageGap(byLocation, p, lastExit)
			result = append(result, StepDuration{From: p.From, To: p.To, AvgDays: avg, Samples: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Intake returns locations created per UTC calendar day, oldest first
func (s *reportServiceImpl) Intake(ctx context.Context, filter ReportFilter) ([]IntakeDay, error) {
	lf := s.locationFilter(filter)
	result := []IntakeDay{}

	err := s.read(ctx, "intake", func(txCtx context.Context) error {
		locations, err := s.locations.List(txCtx, lf)
		if err != nil {
			return err
		}

		perDay := make(map[string]int)
		for _, loc := range locations {
			perDay[loc.CreatedAt.UTC().Format("2006-01-02")]++
		}
		for date, n := range perDay {
			result = append(result, IntakeDay{Date: date, Count: n})
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// diagnose collects locations whose stored step or status is not part of
// the pipeline, or whose status contradicts the step
func (s *reportServiceImpl) diagnose(ctx context.Context, lf entity.LocationFilter, groups []port.GroupCount) (Diagnostics, error) {
	d := Diagnostics{
		UnknownSteps:        []DiagnosticGroup{},
		UnknownStatuses:     []DiagnosticGroup{},
		InconsistentRecords: []DiagnosticGroup{},
	}

	for _, g := range groups {
		status := workflow.Status(g.Status)
		step := workflow.Step(g.Step)

		var target *[]DiagnosticGroup
		var value string
		switch {
		case !step.IsValid():
			target, value = &d.UnknownSteps, g.Step
		case !status.IsValid():
			target, value = &d.UnknownStatuses, g.Status
		case !workflow.Consistent(status, step):
			target, value = &d.InconsistentRecords, g.Status+"/"+g.Step
		default:
			continue
		}

		ids, err := s.reports.ListIDsByGroup(ctx, g, lf)
		if err != nil {
			return d, err
		}

		*target = mergeDiagnostic(*target, value, g.Count, ids)
	}
	return d, nil
}

func mergeDiagnostic(groups []DiagnosticGroup, value string, count int, ids []string) []DiagnosticGroup {
	for i := range groups {
		if groups[i].Value == value {
			groups[i].Count += count
			groups[i].LocationIDs = append(groups[i].LocationIDs, ids...)
			return groups
		}
	}
	return append(groups, DiagnosticGroup{Value: value, Count: count, LocationIDs: ids})
}

// exitFunc picks the entry that marks leaving step among a location's history
type exitFunc func(entries []*entity.HistoryEntry, step workflow.Step) (time.Time, bool)

func lastExit(entries []*entity.HistoryEntry, step workflow.Step) (time.Time, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Step == step {
			return entries[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

func firstExit(entries []*entity.HistoryEntry, step workflow.Step) (time.Time, bool) {
	if step != workflow.StepErfassung {
		return lastExit(entries, step)
	}
	for _, e := range entries {
		if e.Step == step {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

func groupByLocation(entries []*entity.HistoryEntry) map[string][]*entity.HistoryEntry {
	byLocation := make(map[string][]*entity.HistoryEntry)
	for _, e := range entries {
		byLocation[e.LocationID] = append(byLocation[e.LocationID], e)
	}
	return byLocation
}

func averageGap(byLocation map[string][]*entity.HistoryEntry, pair StepPair, exit exitFunc) (float64, int) {
	var total time.Duration
	samples := 0
	for _, entries := range byLocation {
		from, ok := exit(entries, pair.From)
		if !ok {
			continue
		}
		to, ok := exit(entries, pair.To)
		if !ok {
			continue
		}
		total += to.Sub(from)
		samples++
	}
	if samples == 0 {
		return 0, 0
	}
	return total.Hours() / 24 / float64(samples), samples
}
