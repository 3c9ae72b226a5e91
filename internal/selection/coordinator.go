// Package selection turns map selection events into scene lookups and keeps
// the displayed scene in step with the user's latest selection.
//
// Every mutation runs on the dispatcher's core lane. Lookups run on their own
// goroutines and post their outcome back onto the same lane, where the
// acceptance rule drops any outcome that no longer belongs to the latest
// selection. The provider offers no cancellation, so stale lookups are left
// to finish and are ignored.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/streetside/panoview/internal/dispatcher"
	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
)

// Dispatcher commands and lane used by the coordinator.
const (
	CommandSelection = ":SELECTION:"
	CommandLookup    = ":LOOKUP:"
	CoreLane         = "core"
)

// Provider looks up the panorama scene nearest a coordinate.
type Provider interface {
	Lookup(ctx context.Context, c geo.Coordinate) (*scene.Scene, error)
}

// Reporter is told about every request that reaches a terminal status. It is
// called on the core lane and must not block.
type Reporter interface {
	RequestSettled(req scene.Request)
}

// Reporters fans a settled request out to several reporters.
type Reporters []Reporter

// RequestSettled implements Reporter.
func (rs Reporters) RequestSettled(req scene.Request) {
	for _, r := range rs {
		if r != nil {
			r.RequestSettled(req)
		}
	}
}

// Stats counts request outcomes since the coordinator was created.
type Stats struct {
	Issued     uint64
	Accepted   uint64
	Failed     uint64
	Superseded uint64
	Discarded  uint64
}

// Options configures a Coordinator.
type Options struct {
	Reporter Reporter
	Logger   zerolog.Logger
	// Now is the clock used to stamp requests. Defaults to time.Now.
	Now func() time.Time
}

type lookupResult struct {
	requestID uint64
	scene     *scene.Scene
	err       error
	settledAt time.Time
}

// Coordinator runs the selection state machine.
type Coordinator struct {
	provider Provider
	scenes   *scene.Store
	reporter Reporter
	log      zerolog.Logger
	now      func() time.Time

	// post enqueues onto the dispatcher; the coordinator does not own it.
	post func(dispatcher.Event) (any, error)

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// Owned by the core lane.
	lastID  uint64
	current *scene.Request
	phase   Phase

	// Read-side copy of phase/current for other goroutines.
	mu       sync.RWMutex
	snapshot struct {
		phase   Phase
		current scene.Request
		ok      bool
	}

	issued, accepted, failed, superseded, discarded atomic.Uint64

	metrics struct {
		issued    metric.Int64Counter
		accepted  metric.Int64Counter
		failed    metric.Int64Counter
		discarded metric.Int64Counter
	}
}

// New creates a coordinator that displays resolved scenes in scenes.
func New(provider Provider, scenes *scene.Store, opts Options) (*Coordinator, error) {
	if provider == nil {
		return nil, errors.New("selection: nil provider")
	}
	if scenes == nil {
		return nil, errors.New("selection: nil scene store")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		provider: provider,
		scenes:   scenes,
		reporter: opts.Reporter,
		log:      opts.Logger.With().Str("component", "selection").Logger(),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
	}

	m := meter()
	var err error
	if c.metrics.issued, err = m.Int64Counter("selection.requests.issued",
		metric.WithDescription("Scene lookups issued")); err != nil {
		return nil, fmt.Errorf("creating issued counter: %w", err)
	}
	if c.metrics.accepted, err = m.Int64Counter("selection.requests.accepted",
		metric.WithDescription("Scene lookups whose result was displayed")); err != nil {
		return nil, fmt.Errorf("creating accepted counter: %w", err)
	}
	if c.metrics.failed, err = m.Int64Counter("selection.requests.failed",
		metric.WithDescription("Current scene lookups that failed")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if c.metrics.discarded, err = m.Int64Counter("selection.results.discarded",
		metric.WithDescription("Stale lookup outcomes ignored")); err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}

	return c, nil
}

// Register binds the coordinator's handlers to the core lane of d. Anything
// else that mutates core state must register on CoreLane as well. A
// dispatcher can carry one coordinator only.
func (c *Coordinator) Register(d *dispatcher.Dispatcher, queueSize int) error {
	if d.HasHandler(CommandSelection) || d.HasHandler(CommandLookup) {
		return errors.New("selection: dispatcher already has a coordinator")
	}
	opts := []dispatcher.Option{
		dispatcher.Buffered(queueSize),
		dispatcher.Blocking(),
		dispatcher.OnLane(CoreLane),
	}
	d.Register(CommandSelection, c.onSelectionEvent, opts...)
	d.Register(CommandLookup, c.onLookupEvent, opts...)
	c.post = d.Dispatch
	return nil
}

// Post enqueues a selection event onto the core lane.
func (c *Coordinator) Post(ev Event) error {
	if c.post == nil {
		return errors.New("selection: coordinator not registered")
	}
	_, err := c.post(dispatcher.Event{Command: CommandSelection, Payload: ev})
	return err
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.phase
}

// Current returns a copy of the most recently issued request.
func (c *Coordinator) Current() (scene.Request, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.current, c.snapshot.ok
}

// Stats returns outcome counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Issued:     c.issued.Load(),
		Accepted:   c.accepted.Load(),
		Failed:     c.failed.Load(),
		Superseded: c.superseded.Load(),
		Discarded:  c.discarded.Load(),
	}
}

// Close stops in-flight lookups from posting and waits for them to return.
// Call it before closing the dispatcher.
func (c *Coordinator) Close() {
	c.cancel()
	c.inflight.Wait()
}

func (c *Coordinator) onSelectionEvent(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(Event)
	if !ok {
		return nil, fmt.Errorf("selection: unexpected payload %T", e.Payload)
	}
	c.HandleSelection(ev)
	return nil, nil
}

func (c *Coordinator) onLookupEvent(e dispatcher.Event) (any, error) {
	res, ok := e.Payload.(lookupResult)
	if !ok {
		return nil, fmt.Errorf("selection: unexpected payload %T", e.Payload)
	}
	c.handleLookup(res)
	return nil, nil
}

// HandleSelection applies one selection event. It must run on the core lane.
func (c *Coordinator) HandleSelection(ev Event) {
	switch ev := ev.(type) {
	case Selected:
		c.selected(ev.Coordinate)
	case Deselected:
		c.deselected()
	default:
		c.log.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Ignoring unknown selection event")
	}
}

func (c *Coordinator) selected(coord geo.Coordinate) {
	c.supersedePending()

	c.lastID++
	req := &scene.Request{
		ID:         c.lastID,
		Coordinate: coord,
		Status:     scene.Pending,
		IssuedAt:   c.now(),
	}
	c.current = req
	c.phase = Requesting
	c.publish()

	c.issued.Add(1)
	c.metrics.issued.Add(c.ctx, 1)
	c.log.Debug().Uint64("requestId", req.ID).Str("coordinate", coord.String()).Msg("Issuing scene lookup")

	c.inflight.Add(1)
	go c.lookup(req.ID, coord)
}

func (c *Coordinator) deselected() {
	c.supersedePending()
	c.scenes.Clear()
	c.phase = Idle
	c.publish()
	c.log.Debug().Msg("Selection cleared")
}

// supersedePending retires a still-pending current request. Its outcome will
// fail the acceptance rule when it arrives.
func (c *Coordinator) supersedePending() {
	if c.current == nil || c.current.Status != scene.Pending {
		return
	}
	c.current.Status = scene.Superseded
	c.current.SettledAt = c.now()
	c.superseded.Add(1)
	c.log.Debug().Uint64("requestId", c.current.ID).Msg("Scene lookup superseded")
	c.report(*c.current)
}

func (c *Coordinator) lookup(id uint64, coord geo.Coordinate) {
	defer c.inflight.Done()

	sc, err := c.provider.Lookup(c.ctx, coord)
	if err == nil && sc == nil {
		err = ErrEmptyResult
	}
	if c.ctx.Err() != nil {
		return
	}

	_, postErr := c.post(dispatcher.Event{
		Command: CommandLookup,
		Payload: lookupResult{requestID: id, scene: sc, err: err, settledAt: c.now()},
	})
	if postErr != nil {
		c.log.Debug().Err(postErr).Uint64("requestId", id).Msg("Dropping lookup outcome")
	}
}

// accepts is the acceptance rule: only the latest request, and only while
// nothing has superseded it since it was issued.
func (c *Coordinator) accepts(id uint64) bool {
	return c.current != nil && c.current.ID == id && c.phase == Requesting
}

func (c *Coordinator) handleLookup(res lookupResult) {
	if !c.accepts(res.requestID) {
		c.discarded.Add(1)
		c.metrics.discarded.Add(c.ctx, 1)
		c.log.Debug().Uint64("requestId", res.requestID).Bool("failed", res.err != nil).Msg("Discarding stale lookup outcome")
		return
	}

	req := c.current
	req.SettledAt = res.settledAt

	if res.err != nil {
		lookupErr := &LookupError{RequestID: req.ID, Coordinate: req.Coordinate, Err: res.err}
		req.Status = scene.Failed
		req.Err = lookupErr
		c.phase = Failed
		c.publish()

		c.failed.Add(1)
		c.metrics.failed.Add(c.ctx, 1)
		c.log.Error().Err(lookupErr).Uint64("requestId", req.ID).Dur("latency", req.Latency()).Msg("Scene lookup failed")
		c.report(*req)
		return
	}

	req.Status = scene.Resolved
	req.Scene = res.scene
	c.scenes.Show(res.scene, req.ID)
	c.phase = Displayed
	c.publish()

	c.accepted.Add(1)
	c.metrics.accepted.Add(c.ctx, 1)
	c.log.Debug().Uint64("requestId", req.ID).Str("scene", res.scene.ID).Dur("latency", req.Latency()).Msg("Scene displayed")
	c.report(*req)
}

func (c *Coordinator) report(req scene.Request) {
	if c.reporter != nil {
		c.reporter.RequestSettled(req)
	}
}

func (c *Coordinator) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.phase = c.phase
	if c.current != nil {
		c.snapshot.current = *c.current
		c.snapshot.ok = true
	}
}
