package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/standort-workflow/internal/application/dispatcher"
	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/event"
	"github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// memRepo implements the location, history and report ports over slices
type memRepo struct {
	locations []*entity.Location
	history   []*entity.HistoryEntry
	listErr   error
	deleteErr error
}

func (m *memRepo) Create(ctx context.Context, loc *entity.Location) error {
	m.locations = append(m.locations, loc)
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	for _, loc := range m.locations {
		if loc.ID == id {
			return loc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
}

func (m *memRepo) UpdateStep(ctx context.Context, id string, expected workflow.Step, status workflow.Status, step workflow.Step, extra entity.SupplementaryFields) error {
	return errors.New("not used")
}

func (m *memRepo) List(ctx context.Context, filter entity.LocationFilter) ([]*entity.Location, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*entity.Location
	for _, loc := range m.locations {
		if matches(loc, filter) {
			result = append(result, loc)
		}
	}
	if filter.Limit > 0 {
		if filter.Offset >= len(result) {
			return []*entity.Location{}, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[filter.Offset:end]
	}
	return result, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.locations[:0]
	for _, loc := range m.locations {
		if loc.ID != id {
			kept = append(kept, loc)
		}
	}
	m.locations = kept

	history := m.history[:0]
	for _, h := range m.history {
		if h.LocationID != id {
			history = append(history, h)
		}
	}
	m.history = history
	return nil
}

func (m *memRepo) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	m.history = append(m.history, entry)
	return nil
}

func (m *memRepo) ListForLocation(ctx context.Context, locationID string) ([]*entity.HistoryEntry, error) {
	result := []*entity.HistoryEntry{}
	for _, h := range m.history {
		if h.LocationID == locationID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *memRepo) CountByGroup(ctx context.Context, filter entity.LocationFilter) ([]port.GroupCount, error) {
	counts := map[port.GroupCount]int{}
	for _, loc := range m.locations {
		if !matches(loc, filter) {
			continue
		}
		key := port.GroupCount{Status: string(loc.Status), Step: string(loc.CurrentStep), Variant: loc.Vermarktungsform}
		counts[key]++
	}

	result := []port.GroupCount{}
	for key, n := range counts {
		key.Count = n
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		return a.Variant < b.Variant
	})
	return result, nil
}

func (m *memRepo) ListHistory(ctx context.Context, filter entity.LocationFilter) ([]*entity.HistoryEntry, error) {
	allowed := map[string]bool{}
	for _, loc := range m.locations {
		if matches(loc, filter) {
			allowed[loc.ID] = true
		}
	}
	result := []*entity.HistoryEntry{}
	for _, h := range m.history {
		if allowed[h.LocationID] {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *memRepo) ListIDsByGroup(ctx context.Context, group port.GroupCount, filter entity.LocationFilter) ([]string, error) {
	filter.Status, filter.Step = "", ""
	ids := []string{}
	for _, loc := range m.locations {
		if !matches(loc, filter) {
			continue
		}
		if string(loc.Status) == group.Status && string(loc.CurrentStep) == group.Step && loc.Vermarktungsform == group.Variant {
			ids = append(ids, loc.ID)
		}
	}
	return ids, nil
}

func matches(loc *entity.Location, f entity.LocationFilter) bool {
	if f.Status != "" && loc.Status != f.Status {
		return false
	}
	if f.Step != "" && loc.CurrentStep != f.Step {
		return false
	}
	if f.CreatedSince != nil && loc.CreatedAt.Before(*f.CreatedSince) {
		return false
	}
	if len(f.Variants) > 0 {
		found := false
		for _, v := range f.Variants {
			if v == loc.Vermarktungsform {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type mockTxManager struct {
	writes int
	reads  int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.writes++
	return fn(ctx)
}

func (m *mockTxManager) WithReadTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.reads++
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(name string, handler dispatcher.Handler, types ...event.Type) {}
func (m *mockDispatcher) Unsubscribe(name string) {}
func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}
func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}
func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }
func (m *mockDispatcher) Close() error { return nil }

var reportNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func location(id, variant string, status workflow.Status, step workflow.Step, created time.Time) *entity.Location {
	return &entity.Location{
		ID:               id,
		Vermarktungsform: variant,
		Status:           status,
		CurrentStep:      step,
		CreatedAt:        created,
	}
}

func entry(locationID string, step workflow.Step, outcome workflow.Outcome, ts time.Time) *entity.HistoryEntry {
	return &entity.HistoryEntry{
		ID:         fmt.Sprintf("%s-%s-%d", locationID, step, ts.Unix()),
		LocationID: locationID,
		Step:       step,
		Outcome:    outcome,
		User:       "tester",
		Timestamp:  ts,
	}
}

func days(n float64) time.Duration {
	return time.Duration(n * float64(24*time.Hour))
}

// seedPipeline builds a small portfolio:
//
//	a: Digitale Säule, completed
//	b: Roadside-Screen, at niederlassungsleiter
//	c: City-Screen, rejected at ceo
//	d: MegaVision, legacy step value
func seedPipeline() *memRepo {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	repo := &memRepo{
		locations: []*entity.Location{
			location("a", entity.VariantDigitaleSaeule, workflow.StatusCompleted, workflow.StepFertig, start),
			location("b", entity.VariantRoadsideScreen, workflow.StatusActive, workflow.StepNiederlassungsleiter, start.Add(days(1))),
			location("c", entity.VariantCityScreen, workflow.StatusRejected, workflow.StepCEORejected, start.Add(days(1))),
			location("d", entity.VariantMegaVision, workflow.StatusActive, "vertragspruefung", start.Add(days(3))),
		},
	}

	repo.history = []*entity.HistoryEntry{
		entry("a", workflow.StepErfassung, workflow.OutcomeCompleted, start),
		entry("a", workflow.StepLeiterAkquisition, workflow.OutcomeApproved, start.Add(days(2))),
		entry("a", workflow.StepBaurecht, workflow.OutcomeSubmitted, start.Add(days(3))),
		entry("a", workflow.StepBaurecht, workflow.OutcomeApproved, start.Add(days(6))),
		entry("a", workflow.StepCEO, workflow.OutcomeApproved, start.Add(days(7))),
		entry("a", workflow.StepBauteam, workflow.OutcomeUpdated, start.Add(days(8))),
		entry("a", workflow.StepBauteam, workflow.OutcomeCompleted, start.Add(days(12))),
		entry("a", workflow.StepFertigstellung, workflow.OutcomeCompleted, start.Add(days(14))),

		entry("b", workflow.StepErfassung, workflow.OutcomeCompleted, start.Add(days(1))),
		entry("b", workflow.StepLeiterAkquisition, workflow.OutcomeApproved, start.Add(days(5))),

		entry("c", workflow.StepErfassung, workflow.OutcomeCompleted, start.Add(days(1))),
		entry("c", workflow.StepLeiterAkquisition, workflow.OutcomeApproved, start.Add(days(2))),
		entry("c", workflow.StepNiederlassungsleiter, workflow.OutcomeApproved, start.Add(days(3))),
		entry("c", workflow.StepBaurecht, workflow.OutcomeApproved, start.Add(days(4))),
		entry("c", workflow.StepCEO, workflow.OutcomeRejected, start.Add(days(5))),
	}
	return repo
}

func newReportService(repo *memRepo) (ReportService, *mockTxManager) {
	tx := &mockTxManager{}
	return NewReportService(repo, repo, tx, nil, WithReportClock(func() time.Time { return reportNow })), tx
}

// Test location service

func TestLocationService_List(t *testing.T) {
	repo := seedPipeline()
	svc := NewLocationService(repo, repo, &mockTxManager{}, nil, nil)

	all, err := svc.List(context.Background(), entity.LocationFilter{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := svc.List(context.Background(), entity.LocationFilter{Status: workflow.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestLocationService_History(t *testing.T) {
	repo := seedPipeline()
	tx := &mockTxManager{}
	svc := NewLocationService(repo, repo, tx, nil, nil)

	entries, err := svc.History(context.Background(), "b")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, workflow.StepErfassung, entries[0].Step)
	assert.Equal(t, 1, tx.reads)

	_, err = svc.History(context.Background(), "unknown")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestLocationService_Purge(t *testing.T) {
	repo := seedPipeline()
	tx := &mockTxManager{}
	d := &mockDispatcher{}
	svc := NewLocationService(repo, repo, tx, d, nil)

	require.NoError(t, svc.Purge(context.Background(), "c", "admin"))

	_, err := svc.Get(context.Background(), "c")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	entries, _ := repo.ListForLocation(context.Background(), "c")
	assert.Empty(t, entries)
	assert.Equal(t, 1, tx.writes)

	require.Len(t, d.events, 1)
	assert.Equal(t, event.TypeLocationPurged, d.events[0].Type)
	assert.Equal(t, "c", d.events[0].LocationID)
	assert.Equal(t, "admin", d.events[0].GetPayloadString("actor"))

	err = svc.Purge(context.Background(), "c", "admin")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.Len(t, d.events, 1)
}

func TestLocationService_PurgeFailure(t *testing.T) {
	repo := seedPipeline()
	repo.deleteErr = errors.New("disk I/O error")
	d := &mockDispatcher{}
	svc := NewLocationService(repo, repo, &mockTxManager{}, d, nil)

	err := svc.Purge(context.Background(), "a", "admin")
	require.Error(t, err)
	assert.Empty(t, d.events)
}

// Test report service

func TestReportService_Summary(t *testing.T) {
	svc, tx := newReportService(seedPipeline())

	summary, err := svc.Summary(context.Background(), ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total, "unrecognized steps still count towards total")
	assert.Equal(t, 2, summary.InProgress)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Completed)
	assert.InDelta(t, 0.5, summary.SuccessRate, 0.0001)
	assert.Equal(t, 1, summary.LeadTimeSamples)
	assert.InDelta(t, 14, summary.AvgLeadTimeDays, 0.0001)
	assert.Equal(t, 1, tx.reads, "one snapshot per report")

	require.Len(t, summary.Diagnostics.UnknownSteps, 1)
	unknown := summary.Diagnostics.UnknownSteps[0]
	assert.Equal(t, "vertragspruefung", unknown.Value)
	assert.Equal(t, 1, unknown.Count)
	assert.Equal(t, []string{"d"}, unknown.LocationIDs)
}

func TestReportService_EmptyStore(t *testing.T) {
	svc, _ := newReportService(&memRepo{})
	ctx := context.Background()

	summary, err := svc.Summary(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.SuccessRate)
	assert.True(t, summary.Diagnostics.Empty())

	funnel, err := svc.Funnel(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, funnel.Stages, len(workflow.Steps()))

	durations, err := svc.Durations(ctx, ReportFilter{}, nil)
	require.NoError(t, err)
	for _, d := range durations {
		assert.Zero(t, d.Samples)
	}

	intake, err := svc.Intake(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, intake)
}

func TestReportService_Funnel(t *testing.T) {
	svc, _ := newReportService(seedPipeline())

	funnel, err := svc.Funnel(context.Background(), ReportFilter{})
	require.NoError(t, err)

	stages := map[workflow.Step]FunnelStage{}
	for _, s := range funnel.Stages {
		stages[s.Step] = s
	}

	// a completed, b at niederlassungsleiter, c rejected, d unknown
	assert.Equal(t, 1, stages[workflow.StepErfassung].AtOrPast)
	assert.Equal(t, 1, stages[workflow.StepNiederlassungsleiter].AtOrPast)
	assert.Equal(t, 1, stages[workflow.StepNiederlassungsleiter].AtStep)
	assert.Equal(t, 0, stages[workflow.StepBaurecht].AtOrPast)
	assert.Equal(t, 0, stages[workflow.StepFertig].AtOrPast, "completed locations are not active")
	assert.Equal(t, 0, stages[workflow.StepFertig].AtStep)

	assert.Equal(t, 2, stages[workflow.StepErfassung].Reached)
	assert.Equal(t, 2, stages[workflow.StepNiederlassungsleiter].Reached)
	assert.Equal(t, 1, stages[workflow.StepWiderspruch].Reached, "skipped optional step still counts as reached")
	assert.Equal(t, 1, stages[workflow.StepFertig].Reached)

	// ceo sorts before niederlassungsleiter lexically but comes after it
	assert.Equal(t, 0, stages[workflow.StepCEO].AtOrPast)
	assert.Equal(t, 1, stages[workflow.StepCEO].Reached)
	assert.Len(t, funnel.Diagnostics.UnknownSteps, 1)
}

func TestReportService_Durations(t *testing.T) {
	svc, _ := newReportService(seedPipeline())

	durations, err := svc.Durations(context.Background(), ReportFilter{}, []StepPair{
		{From: workflow.StepErfassung, To: workflow.StepLeiterAkquisition},
		{From: workflow.StepLeiterAkquisition, To: workflow.StepBaurecht},
		{From: workflow.StepBauteam, To: workflow.StepFertigstellung},
		{From: workflow.StepWiderspruch, To: workflow.StepCEO},
	})
	require.NoError(t, err)
	require.Len(t, durations, 4)

	// a: 2 days, b: 4 days, c: 1 day
	assert.Equal(t, 3, durations[0].Samples)
	assert.InDelta(t, 7.0/3.0, durations[0].AvgDays, 0.0001)

	// last baurecht entry counts as exit: a 4 days, c 2 days
	assert.Equal(t, 2, durations[1].Samples)
	assert.InDelta(t, 3, durations[1].AvgDays, 0.0001)

	assert.Equal(t, 1, durations[2].Samples)
	assert.InDelta(t, 2, durations[2].AvgDays, 0.0001)

	assert.Zero(t, durations[3].Samples)
	assert.Zero(t, durations[3].AvgDays)
}

func TestReportService_DefaultPairs(t *testing.T) {
	pairs := DefaultStepPairs()
	require.NotEmpty(t, pairs)
	assert.Equal(t, StepPair{From: workflow.StepErfassung, To: workflow.StepLeiterAkquisition}, pairs[0])
	assert.Equal(t, workflow.StepFertigstellung, pairs[len(pairs)-1].To)
}

func TestReportService_Filters(t *testing.T) {
	svc, _ := newReportService(seedPipeline())
	ctx := context.Background()

	counts, err := svc.Counts(ctx, ReportFilter{Variants: []string{entity.VariantDigitaleSaeule, entity.VariantCityScreen}})
	require.NoError(t, err)
	total := 0
	for _, g := range counts.Groups {
		total += g.Count
	}
	assert.Equal(t, 2, total)
	assert.True(t, counts.Diagnostics.Empty())

	// timeframe of 28 days back from June 30 keeps d (June 4) only
	recent, err := svc.Summary(ctx, ReportFilter{Days: 28})
	require.NoError(t, err)
	assert.Equal(t, 1, recent.Total)
}

func TestReportService_Intake(t *testing.T) {
	svc, _ := newReportService(seedPipeline())

	intake, err := svc.Intake(context.Background(), ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, []IntakeDay{
		{Date: "2024-06-01", Count: 1},
		{Date: "2024-06-02", Count: 2},
		{Date: "2024-06-04", Count: 1},
	}, intake)
}

func TestReportService_InconsistentRecords(t *testing.T) {
	repo := &memRepo{locations: []*entity.Location{
		location("x", entity.VariantSuperMotion, workflow.StatusActive, workflow.StepFertig, reportNow),
		location("y", entity.VariantSuperMotion, "archiviert", workflow.StepCEO, reportNow),
	}}
	svc, _ := newReportService(repo)

	counts, err := svc.Counts(context.Background(), ReportFilter{})
	require.NoError(t, err)
	require.Len(t, counts.Diagnostics.InconsistentRecords, 1)
	assert.Equal(t, []string{"x"}, counts.Diagnostics.InconsistentRecords[0].LocationIDs)
	require.Len(t, counts.Diagnostics.UnknownStatuses, 1)
	assert.Equal(t, "archiviert", counts.Diagnostics.UnknownStatuses[0].Value)
}

func TestReportService_BlankStepDiagnostics(t *testing.T) {
	repo := seedPipeline()
	blank := *repo.locations[1]
	blank.ID = "e"
	blank.CurrentStep = ""
	repo.locations = append(repo.locations, &blank)
	svc, _ := newReportService(repo)

	counts, err := svc.Counts(context.Background(), ReportFilter{})
	require.NoError(t, err)

	got := map[string]DiagnosticGroup{}
	for _, g := range counts.Diagnostics.UnknownSteps {
		got[g.Value] = g
	}
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[""].Count)
	assert.Equal(t, []string{"e"}, got[""].LocationIDs, "valid locations sharing status and variant stay out")
	assert.Equal(t, []string{"d"}, got["vertragspruefung"].LocationIDs)
}

func TestReportService_RepositoryError(t *testing.T) {
	repo := seedPipeline()
	repo.listErr = errors.New("database is locked")
	svc, _ := newReportService(repo)

	_, err := svc.Intake(context.Background(), ReportFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intake report")
}
