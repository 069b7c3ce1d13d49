package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/config"
)

// fakeAPI records calls and can be told to fail track requests.
type fakeAPI struct {
	mu sync.Mutex

	active    *models.Journey
	journey   *models.Journey
	batches   [][]models.Coordinate
	failTrack bool
	stopErr   error
	stopped   bool
	cancelled bool
}

func newFakeAPI() *fakeAPI {
	id := uuid.New()
	return &fakeAPI{
		journey: &models.Journey{
			ID:        id,
			StartTime: time.Now(),
			Status:    models.JourneyRecording,
		},
	}
}

func (f *fakeAPI) StartJourney(ctx context.Context, req StartJourneyRequest) (*models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.journey, nil
}

func (f *fakeAPI) TrackCoordinates(ctx context.Context, journeyID uuid.UUID, coords []models.Coordinate) (*models.TrackProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTrack {
		return nil, errors.New("network unreachable")
	}
	batch := make([]models.Coordinate, len(coords))
	copy(batch, coords)
	f.batches = append(f.batches, batch)
	return &models.TrackProgress{PointCount: len(coords)}, nil
}

func (f *fakeAPI) PauseJourney(ctx context.Context, journeyID uuid.UUID) error  { return nil }
func (f *fakeAPI) ResumeJourney(ctx context.Context, journeyID uuid.UUID) error { return nil }

func (f *fakeAPI) StopJourney(ctx context.Context, journeyID uuid.UUID, req StopJourneyRequest) (*StopOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	f.stopped = true
	return &StopOutcome{Journey: &models.Journey{ID: journeyID, Status: models.JourneyCompleted}}, nil
}

func (f *fakeAPI) CancelJourney(ctx context.Context, journeyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return nil
}

func (f *fakeAPI) GetActiveJourney(ctx context.Context) (*models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeAPI) setFailTrack(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTrack = fail
}

func (f *fakeAPI) sentBatches() [][]models.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]models.Coordinate, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeAPI) totalSent() int {
	n := 0
	for _, b := range f.sentBatches() {
		n += len(b)
	}
	return n
}

type recorderFixture struct {
	rec    *Recorder
	api    *fakeAPI
	source *PushSource
	cancel context.CancelFunc
}

func newRecorderFixture(t *testing.T, flushInterval time.Duration) *recorderFixture {
	t.Helper()
	api := newFakeAPI()
	source := NewPushSource()
	rec := NewRecorder(api, source, config.RecordingConfig{
		FlushInterval: flushInterval,
		TimerInterval: time.Second,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rec.Run(ctx) }()
	t.Cleanup(cancel)

	return &recorderFixture{rec: rec, api: api, source: source, cancel: cancel}
}

func fix(lat, lng float64) models.Coordinate {
	return models.Coordinate{Lat: lat, Lng: lng, Timestamp: time.Now()}
}

func waitForTrace(t *testing.T, rec *Recorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := rec.Snapshot(context.Background())
		return err == nil && len(snap.Trace) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRecorder_BuffersAndFlushesInOrder(t *testing.T) {
	f := newRecorderFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	f.source.Publish(fix(27.7001, 85.30))
	f.source.Publish(fix(27.7002, 85.30))
	f.source.Publish(fix(27.7003, 85.30))
	waitForTrace(t, f.rec, 3)

	require.Eventually(t, func() bool {
		return f.api.totalSent() == 3
	}, 2*time.Second, 5*time.Millisecond)

	var all []models.Coordinate
	for _, b := range f.api.sentBatches() {
		all = append(all, b...)
	}
	require.Len(t, all, 3)
	assert.Equal(t, 27.7001, all[0].Lat)
	assert.Equal(t, 27.7002, all[1].Lat)
	assert.Equal(t, 27.7003, all[2].Lat)

	snap, err := f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Buffered)
	assert.Equal(t, StateRecording, snap.State)
}

func TestRecorder_FailedFlushRequeuesAheadOfNewFixes(t *testing.T) {
	f := newRecorderFixture(t, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	f.api.setFailTrack(true)
	f.source.Publish(fix(27.7001, 85.30))
	f.source.Publish(fix(27.7002, 85.30))
	waitForTrace(t, f.rec, 2)

	// Let at least one flush fail while offline.
	require.Eventually(t, func() bool {
		snap, err := f.rec.Snapshot(ctx)
		return err == nil && snap.Buffered == 2
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, f.api.sentBatches())

	f.source.Publish(fix(27.7003, 85.30))
	waitForTrace(t, f.rec, 3)
	f.api.setFailTrack(false)

	require.Eventually(t, func() bool {
		return f.api.totalSent() == 3
	}, 2*time.Second, 5*time.Millisecond)

	var all []models.Coordinate
	for _, b := range f.api.sentBatches() {
		all = append(all, b...)
	}
	// Oldest fixes first even after the retry.
	assert.Equal(t, 27.7001, all[0].Lat)
	assert.Equal(t, 27.7002, all[1].Lat)
	assert.Equal(t, 27.7003, all[2].Lat)
}

func TestRecorder_SamplesWhilePausedAreDropped(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))
	f.source.Publish(fix(27.7001, 85.30))
	waitForTrace(t, f.rec, 1)

	require.NoError(t, f.rec.Pause(ctx))

	// The subscription is gone, these fixes reach nobody.
	f.source.Publish(fix(27.7002, 85.30))
	f.source.Publish(fix(27.7003, 85.30))
	time.Sleep(50 * time.Millisecond)

	snap, err := f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePaused, snap.State)
	assert.Len(t, snap.Trace, 1)

	require.NoError(t, f.rec.Resume(ctx))
	f.source.Publish(fix(27.7004, 85.30))
	waitForTrace(t, f.rec, 2)

	snap, err = f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 27.7004, snap.Trace[1].Lat)
}

// subscriptionSpy hands out push subscriptions and remembers every
// subscription context so tests can check teardown.
type subscriptionSpy struct {
	push *PushSource

	mu   sync.Mutex
	ctxs []context.Context
}

func (s *subscriptionSpy) Subscribe(ctx context.Context) (<-chan models.Coordinate, error) {
	s.mu.Lock()
	s.ctxs = append(s.ctxs, ctx)
	s.mu.Unlock()
	return s.push.Subscribe(ctx)
}

func (s *subscriptionSpy) contexts() []context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]context.Context, len(s.ctxs))
	copy(out, s.ctxs)
	return out
}

func TestRecorder_PauseCancelsSubscriptionResumeReopens(t *testing.T) {
	api := newFakeAPI()
	spy := &subscriptionSpy{push: NewPushSource()}
	rec := NewRecorder(api, spy, config.RecordingConfig{
		FlushInterval: time.Hour,
		TimerInterval: time.Second,
	}, zap.NewNop())

	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() { _ = rec.Run(runCtx) }()
	t.Cleanup(cancelRun)
	ctx := context.Background()

	require.NoError(t, rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))
	ctxs := spy.contexts()
	require.Len(t, ctxs, 1)
	require.NoError(t, ctxs[0].Err())

	// Pause must tear the subscription down so the device stops its GPS
	// watch, otherwise a simulated source keeps walking its path and the
	// journey silently skips ahead on resume.
	require.NoError(t, rec.Pause(ctx))
	assert.ErrorIs(t, ctxs[0].Err(), context.Canceled)

	require.NoError(t, rec.Resume(ctx))
	ctxs = spy.contexts()
	require.Len(t, ctxs, 2)
	assert.NoError(t, ctxs[1].Err())

	// The fresh subscription feeds the trace again.
	spy.push.Publish(fix(27.7001, 85.30))
	waitForTrace(t, rec, 1)

	snap, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 27.7001, snap.Trace[0].Lat)
}

func TestRecorder_WatchEmitsSnapshots(t *testing.T) {
	api := newFakeAPI()
	source := NewPushSource()
	rec := NewRecorder(api, source, config.RecordingConfig{
		FlushInterval: time.Hour,
		TimerInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() { _ = rec.Run(runCtx) }()
	t.Cleanup(cancelRun)
	ctx := context.Background()

	require.NoError(t, rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	snaps := rec.Watch(watchCtx)

	select {
	case snap := <-snaps:
		assert.Equal(t, StateRecording, snap.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot emitted")
	}

	cancelWatch()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-snaps:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestRecorder_StopFlushesBeforeFinalizing(t *testing.T) {
	f := newRecorderFixture(t, time.Hour) // cadence never fires, only the final flush can sync
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))
	f.source.Publish(fix(27.7001, 85.30))
	f.source.Publish(fix(27.7002, 85.30))
	waitForTrace(t, f.rec, 2)

	_, err := f.rec.Stop(ctx, StopJourneyRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.api.totalSent())
	assert.True(t, f.api.stopped)

	snap, err := f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
}

func TestRecorder_StopValidationRejectionEndsSession(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()
	f.api.stopErr = &models.RecordingValidationError{Reason: models.ReasonTooShort, DurationSec: 10}

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	_, err := f.rec.Stop(ctx, StopJourneyRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)

	snap, snapErr := f.rec.Snapshot(ctx)
	require.NoError(t, snapErr)
	assert.Equal(t, StateIdle, snap.State)
}

func TestRecorder_StopNetworkFailureKeepsSession(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()
	f.api.stopErr = errors.New("gateway timeout")

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	_, err := f.rec.Stop(ctx, StopJourneyRequest{})
	require.Error(t, err)

	snap, snapErr := f.rec.Snapshot(ctx)
	require.NoError(t, snapErr)
	assert.Equal(t, StateRecording, snap.State)

	// Retry succeeds once the network is back.
	f.api.mu.Lock()
	f.api.stopErr = nil
	f.api.mu.Unlock()
	_, err = f.rec.Stop(ctx, StopJourneyRequest{})
	require.NoError(t, err)
}

func TestRecorder_StartAdoptsServerActiveJourney(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()

	activeID := uuid.New()
	f.api.active = &models.Journey{
		ID:        activeID,
		StartTime: time.Now().Add(-5 * time.Minute),
		Status:    models.JourneyRecording,
		Coordinates: []models.Coordinate{
			fix(27.70, 85.30),
			fix(27.71, 85.30),
		},
	}

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.72, 85.30)}))

	snap, err := f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, activeID, snap.JourneyID)
	assert.Len(t, snap.Trace, 2)
	assert.Greater(t, snap.DistanceM, 0.0)
}

func TestRecorder_SecondStartRejected(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))

	err := f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)})
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestRecorder_CancelDiscardsSession(t *testing.T) {
	f := newRecorderFixture(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, f.rec.Start(ctx, StartJourneyRequest{Coordinate: fix(27.70, 85.30)}))
	require.NoError(t, f.rec.Cancel(ctx))

	assert.True(t, f.api.cancelled)
	snap, err := f.rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
	assert.ErrorIs(t, f.rec.Pause(ctx), ErrNoSession)
}
