package tracking

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/config"
	"github.com/FACorreiaa/trailtrace/internal/pkg/geo"
)

// State is the client-side recording lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// ErrNoSession is returned by session commands when nothing is recording.
var ErrNoSession = errors.New("no recording session in progress")

// ErrSessionActive is returned by Start when a session is already running.
var ErrSessionActive = errors.New("a recording session is already in progress")

// Snapshot is a point-in-time view of the recorder for rendering. Trace is
// a copy, callers may keep it.
type Snapshot struct {
	State       State
	JourneyID   uuid.UUID
	Trace       []models.Coordinate
	Buffered    int
	DistanceM   float64
	DurationSec float64
}

// session is the loop-owned state of one recording. Only the event loop
// goroutine touches it, which is what serializes samples, flushes and
// commands without locks.
type session struct {
	journeyID    uuid.UUID
	startTime    time.Time
	state        State
	buffer       []models.Coordinate
	trace        []models.Coordinate
	distanceM    float64
	samples      <-chan models.Coordinate
	cancelSource context.CancelFunc
}

type command struct {
	run   func(ctx context.Context) error
	reply chan error
}

// Recorder drives a recording session: it subscribes to a position source,
// accumulates fixes in a local buffer, and syncs the buffer to the server
// on a fixed cadence. Network failures never lose samples, a failed flush
// re-queues the batch ahead of newer fixes so upload order is preserved.
type Recorder struct {
	logger *zap.Logger
	api    API
	source Source
	cfg    config.RecordingConfig

	cmds chan command
	snap chan chan Snapshot
	now  func() time.Time

	// loop-owned
	sess *session
}

func NewRecorder(api API, source Source, cfg config.RecordingConfig, logger *zap.Logger) *Recorder {
	return &Recorder{
		logger: logger,
		api:    api,
		source: source,
		cfg:    cfg,
		cmds:   make(chan command),
		snap:   make(chan chan Snapshot),
		now:    time.Now,
	}
}

// Run executes the event loop until ctx is cancelled. All recorder state
// lives on this goroutine.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		// The sample channel is nil outside a session, which parks that
		// select arm.
		var samples <-chan models.Coordinate
		if r.sess != nil {
			samples = r.sess.samples
		}

		select {
		case <-ctx.Done():
			r.teardown()
			return ctx.Err()

		case cmd := <-r.cmds:
			cmd.reply <- cmd.run(ctx)

		case fix, ok := <-samples:
			if !ok {
				r.sess.samples = nil
				continue
			}
			r.onSample(fix)

		case <-ticker.C:
			// Cadence flushes only run while recording. Fixes buffered
			// before a pause go out with the final flush at stop, or once
			// recording resumes.
			if r.sess != nil && r.sess.state == StateRecording {
				r.flush(ctx)
			}

		case replyTo := <-r.snap:
			replyTo <- r.snapshot()
		}
	}
}

func (r *Recorder) teardown() {
	if r.sess != nil && r.sess.cancelSource != nil {
		r.sess.cancelSource()
	}
}

// onSample appends a fix to the live trace and the unsent buffer. Fixes
// arriving while paused or after stop are dropped, the source keeps
// emitting for a moment after a state change.
func (r *Recorder) onSample(fix models.Coordinate) {
	if r.sess == nil || r.sess.state != StateRecording {
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = r.now()
	}

	if n := len(r.sess.trace); n > 0 {
		r.sess.distanceM += geo.Distance(r.sess.trace[n-1], fix)
	}
	r.sess.trace = append(r.sess.trace, fix)
	r.sess.buffer = append(r.sess.buffer, fix)
}

// flush syncs the buffered fixes. The buffer is cleared before the call
// and restored at the front on failure so a retry sends the oldest fixes
// first.
func (r *Recorder) flush(ctx context.Context) {
	if r.sess == nil || len(r.sess.buffer) == 0 {
		return
	}

	batch := r.sess.buffer
	r.sess.buffer = nil

	if _, err := r.api.TrackCoordinates(ctx, r.sess.journeyID, batch); err != nil {
		r.logger.Warn("Flush failed, re-queueing batch",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		r.sess.buffer = append(batch, r.sess.buffer...)
		return
	}

	r.logger.Debug("Flushed coordinate batch", zap.Int("batch_size", len(batch)))
}

func (r *Recorder) snapshot() Snapshot {
	if r.sess == nil {
		return Snapshot{State: StateIdle}
	}

	trace := make([]models.Coordinate, len(r.sess.trace))
	copy(trace, r.sess.trace)

	return Snapshot{
		State:       r.sess.state,
		JourneyID:   r.sess.journeyID,
		Trace:       trace,
		Buffered:    len(r.sess.buffer),
		DistanceM:   r.sess.distanceM,
		DurationSec: r.now().Sub(r.sess.startTime).Seconds(),
	}
}

// exec runs fn on the event loop and waits for the result.
func (r *Recorder) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	select {
	case r.cmds <- command{run: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current recorder view.
func (r *Recorder) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case r.snap <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Watch emits a snapshot on every timer tick until ctx is cancelled, so a
// display sink can drive its duration counter without polling on its own
// schedule. Slow consumers see the latest snapshot, ticks are never queued.
func (r *Recorder) Watch(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(r.cfg.TimerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := r.Snapshot(ctx)
				if err != nil {
					return
				}
				select {
				case out <- snap:
				default:
					// Drop the stale snapshot so the fresh one replaces it.
					select {
					case <-out:
					default:
					}
					out <- snap
				}
			}
		}
	}()
	return out
}

// Start opens a recording session. If the server still has an active
// journey from a previous run, the recorder adopts it instead of starting
// a new one.
func (r *Recorder) Start(ctx context.Context, req StartJourneyRequest) error {
	return r.exec(ctx, func(ctx context.Context) error {
		if r.sess != nil {
			return ErrSessionActive
		}

		active, err := r.api.GetActiveJourney(ctx)
		if err != nil {
			return errors.Wrap(err, "checking for active journey")
		}

		var j *models.Journey
		if active != nil {
			r.logger.Info("Adopting active journey from server",
				zap.String("journeyID", active.ID.String()))
			j = active
		} else {
			if req.Coordinate.Timestamp.IsZero() {
				req.Coordinate.Timestamp = r.now()
			}
			j, err = r.api.StartJourney(ctx, req)
			if err != nil {
				return errors.Wrap(err, "starting journey")
			}
		}

		srcCtx, cancel := context.WithCancel(context.Background())
		samples, err := r.source.Subscribe(srcCtx)
		if err != nil {
			cancel()
			// Roll back a journey we just created, an adopted one stays.
			if active == nil {
				if cancelErr := r.api.CancelJourney(ctx, j.ID); cancelErr != nil {
					r.logger.Warn("Failed to cancel journey after source failure",
						zap.Error(cancelErr))
				}
			}
			return errors.Wrap(err, "subscribing to position source")
		}

		state := StateRecording
		if j.Status == models.JourneyPaused {
			state = StatePaused
		}

		r.sess = &session{
			journeyID:    j.ID,
			startTime:    j.StartTime,
			state:        state,
			trace:        append([]models.Coordinate(nil), j.Coordinates...),
			distanceM:    geo.TotalDistance(j.Coordinates),
			samples:      samples,
			cancelSource: cancel,
		}
		return nil
	})
}

// Pause suspends sample capture and cadence flushes. The position source
// subscription is cancelled so the device can stop its GPS watch; buffered
// fixes stay buffered until recording resumes or the final flush at stop.
func (r *Recorder) Pause(ctx context.Context) error {
	return r.exec(ctx, func(ctx context.Context) error {
		if r.sess == nil || r.sess.state != StateRecording {
			return ErrNoSession
		}
		if err := r.api.PauseJourney(ctx, r.sess.journeyID); err != nil {
			return errors.Wrap(err, "pausing journey")
		}
		r.sess.cancelSource()
		r.sess.cancelSource = nil
		r.sess.samples = nil
		r.sess.state = StatePaused
		return nil
	})
}

// Resume opens a fresh source subscription and restarts capture. The old
// subscription was torn down at pause, so the source starts clean.
func (r *Recorder) Resume(ctx context.Context) error {
	return r.exec(ctx, func(ctx context.Context) error {
		if r.sess == nil || r.sess.state != StatePaused {
			return ErrNoSession
		}

		srcCtx, cancel := context.WithCancel(context.Background())
		samples, err := r.source.Subscribe(srcCtx)
		if err != nil {
			cancel()
			return errors.Wrap(err, "resubscribing to position source")
		}

		if err := r.api.ResumeJourney(ctx, r.sess.journeyID); err != nil {
			cancel()
			return errors.Wrap(err, "resuming journey")
		}

		r.sess.samples = samples
		r.sess.cancelSource = cancel
		r.sess.state = StateRecording
		return nil
	})
}

// Stop flushes the remaining buffer synchronously, then finalizes the
// journey on the server. A validation rejection surfaces as a
// models.RecordingValidationError and ends the session as cancelled.
func (r *Recorder) Stop(ctx context.Context, req StopJourneyRequest) (*StopOutcome, error) {
	var outcome *StopOutcome
	err := r.exec(ctx, func(ctx context.Context) error {
		if r.sess == nil {
			return ErrNoSession
		}

		prev := r.sess.state
		r.sess.state = StateStopping
		r.flush(ctx)
		if len(r.sess.buffer) > 0 {
			r.logger.Warn("Stopping with unsynced fixes",
				zap.Int("buffered", len(r.sess.buffer)))
		}

		result, err := r.api.StopJourney(ctx, r.sess.journeyID, req)
		if err != nil {
			var validationErr *models.RecordingValidationError
			if stderrors.As(err, &validationErr) {
				r.endSession(StateCancelled)
				return err
			}
			// Transient failure, keep the session so the caller can retry.
			r.sess.state = prev
			return errors.Wrap(err, "stopping journey")
		}

		outcome = result
		r.endSession(StateCompleted)
		return nil
	})
	return outcome, err
}

// Cancel discards the session and marks the journey cancelled server-side.
func (r *Recorder) Cancel(ctx context.Context) error {
	return r.exec(ctx, func(ctx context.Context) error {
		if r.sess == nil {
			return ErrNoSession
		}
		if err := r.api.CancelJourney(ctx, r.sess.journeyID); err != nil {
			return errors.Wrap(err, "cancelling journey")
		}
		r.endSession(StateCancelled)
		return nil
	})
}

func (r *Recorder) endSession(final State) {
	if r.sess.cancelSource != nil {
		r.sess.cancelSource()
	}
	r.logger.Info("Recording session ended",
		zap.String("journeyID", r.sess.journeyID.String()),
		zap.String("state", string(final)))
	r.sess = nil
}
