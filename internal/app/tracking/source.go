package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/geo"
)

// Source emits position fixes for a recording session. Subscribe returns a
// channel that closes when the context is cancelled or the source stops.
// A source returns models.ErrPermissionDenied when the platform refuses
// location access.
type Source interface {
	Subscribe(ctx context.Context) (<-chan models.Coordinate, error)
}

// simulatorStepM is the interpolation spacing between generated fixes.
const simulatorStepM = 5.0

// Simulator replays a waypoint path as a stream of fixes, looping when it
// reaches the end. Resubscribing continues from the current path index, so
// pause and resume do not rewind the walk. Used in development and in the
// recorder tests.
type Simulator struct {
	logger   *zap.Logger
	path     []models.Coordinate
	interval time.Duration
	now      func() time.Time

	mu  sync.Mutex
	idx int
}

func NewSimulator(waypoints []models.Coordinate, interval time.Duration, logger *zap.Logger) *Simulator {
	return &Simulator{
		logger:   logger,
		path:     geo.Interpolate(waypoints, simulatorStepM),
		interval: interval,
		now:      time.Now,
	}
}

// next returns the upcoming fix with synthesized altitude and accuracy,
// devices always report those on a real walk.
func (s *Simulator) next() models.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()

	fix := s.path[s.idx%len(s.path)]
	altitude := 1300.0 + 8.0*math.Sin(float64(s.idx)/20.0)
	accuracy := 5.0
	fix.Altitude = &altitude
	fix.Accuracy = &accuracy
	fix.Timestamp = s.now()
	s.idx++
	return fix
}

func (s *Simulator) Subscribe(ctx context.Context) (<-chan models.Coordinate, error) {
	if len(s.path) == 0 {
		return nil, models.ErrPermissionDenied
	}

	out := make(chan models.Coordinate)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- s.next():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// PushSource is a Source fed programmatically, bridging platform location
// callbacks into the recorder.
type PushSource struct {
	mu     sync.Mutex
	subs   []chan models.Coordinate
	closed bool
}

func NewPushSource() *PushSource {
	return &PushSource{}
}

func (p *PushSource) Subscribe(ctx context.Context) (<-chan models.Coordinate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, models.ErrPermissionDenied
	}

	ch := make(chan models.Coordinate, 16)
	p.subs = append(p.subs, ch)

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subs {
			if sub == ch {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Publish delivers a fix to every subscriber, dropping it for subscribers
// whose buffer is full.
func (p *PushSource) Publish(fix models.Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		select {
		case sub <- fix:
		default:
		}
	}
}

// Close ends every subscription.
func (p *PushSource) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, sub := range p.subs {
		close(sub)
	}
	p.subs = nil
}
