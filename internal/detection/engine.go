// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/p56watch/internal/feed"
	"github.com/tomtom215/p56watch/internal/geo"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/metrics"
	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/store"
)

// ErrUnauthorized is returned by Clear when the caller was not authorized.
var ErrUnauthorized = errors.New("clear requires authorization")

const notifyTimeout = 15 * time.Second

// Source produces one snapshot per call.
type Source interface {
	Fetch(ctx context.Context) (*models.Snapshot, error)
}

// CycleResult summarizes one processed snapshot.
type CycleResult struct {
	Cycle        uint64
	SnapshotTime time.Time
	Skipped      bool
	// Aircraft counts aircraft handed to the state machine.
	Aircraft       int
	Opened         []*models.IntrusionEvent
	Sealed         []*models.IntrusionEvent
	Merged         int
	GeometryErrors int
	PendingCommits int
	// Invariant is set when the post-cycle invariant check failed.
	Invariant error
}

type pendingCommit struct {
	event *models.IntrusionEvent
	// fresh is true when no version of the event has been committed yet.
	fresh bool
}

// Engine runs the poll-classify-persist cycle.
type Engine struct {
	cfg        Config
	classifier *geo.Classifier
	target     geo.Shape
	store      store.EventStore
	source     Source

	history   *History
	tracker   *Tracker
	finalizer *Finalizer

	mu          sync.RWMutex
	broadcaster Broadcaster
	notifiers   []Notifier

	// cycleMu serializes Process and Clear.
	cycleMu  sync.Mutex
	cycle    uint64
	pending  map[string]*pendingCommit
	liveFail bool
	// events feeds the view; eventsLoaded is false until the log was read.
	events       *eventCache
	eventsLoaded bool

	view atomic.Pointer[View]

	statusMu sync.RWMutex
	status   Status
}

// NewEngine wires an engine. source may be nil when snapshots are pushed
// through Process directly.
func NewEngine(cfg Config, classifier *geo.Classifier, st store.EventStore, source Source) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	if classifier == nil || st == nil {
		return nil, fmt.Errorf("classifier and store are required")
	}
	target, ok := classifier.Zone(cfg.TargetZone)
	if !ok {
		return nil, fmt.Errorf("no boundary loaded for target zone %s", cfg.TargetZone)
	}

	history := NewHistory(cfg.HistoryCapacity)
	e := &Engine{
		cfg:        cfg,
		classifier: classifier,
		target:     target,
		store:      st,
		source:     source,
		history:    history,
		tracker:    NewTracker(cfg, history),
		finalizer:  NewFinalizer(cfg, st),
		pending:    make(map[string]*pendingCommit),
		events:     newEventCache(cfg.ViewEventLimit),
	}
	e.view.Store(emptyView(time.Now().UTC()))
	return e, nil
}

// SetBroadcaster sets the dashboard broadcaster.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// RegisterNotifier adds a notifier for sealed incursions.
func (e *Engine) RegisterNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Bool("enabled", n.Enabled()).Msg("registered notifier")
}

// View returns the latest published view. It never returns nil.
func (e *Engine) View() *View {
	return e.view.Load()
}

// Status returns a copy of the engine status.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Restore reloads the live table saved by a previous run, including sealed
// events whose commit had not succeeded yet, and rebuilds the read-side
// view. Call it once before the first cycle.
func (e *Engine) Restore(ctx context.Context) error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	entries, err := e.store.LoadLive(ctx)
	if err != nil {
		return fmt.Errorf("load live table: %w", err)
	}
	open := make([]models.LiveEntry, 0, len(entries))
	for _, le := range entries {
		if !le.Pending {
			open = append(open, le)
			continue
		}
		if le.Event == nil || le.Event.Open() {
			continue
		}
		e.pending[le.Event.ID] = &pendingCommit{event: le.Event.Clone(), fresh: le.FirstCommit}
		e.finalizer.Remember(le.Event)
	}
	n := e.tracker.Restore(open)

	v := emptyView(time.Now().UTC())
	v.Live = e.tracker.Live()
	if err := e.loadEvents(ctx); err != nil {
		metrics.RecordPersistenceError("query")
		logging.Warn().Err(err).Msg("Could not load event log for initial view; retrying next cycle")
	}
	v.Events, v.Leaderboard = e.events.events(), e.events.leaderboard()
	e.view.Store(v)
	metrics.OpenIncursions.Set(float64(n))
	metrics.PendingCommits.Set(float64(len(e.pending)))

	e.statusMu.Lock()
	e.status.OpenIncursions = n
	e.status.PendingCommits = len(e.pending)
	e.statusMu.Unlock()

	logging.Info().Int("open_incursions", n).Int("pending_commits", len(e.pending)).Msg("Live table restored")
	return nil
}

// Serve polls the source every PollInterval until ctx is done.
func (e *Engine) Serve(ctx context.Context) error {
	if e.source == nil {
		return fmt.Errorf("detection engine has no snapshot source")
	}
	logging.Info().
		Dur("poll_interval", e.cfg.PollInterval).
		Str("target_zone", string(e.cfg.TargetZone)).
		Msg("Detection engine started")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.runLogged(ctx)
		select {
		case <-ctx.Done():
			logging.Info().Msg("Detection engine stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) String() string { return "detection-engine" }

func (e *Engine) runLogged(ctx context.Context) {
	res, err := e.RunCycle(ctx)
	switch {
	case err == nil:
	case feed.IsNoUpdate(err):
		logging.Debug().Err(err).Msg("No new snapshot; cycle skipped")
		return
	case ctx.Err() != nil:
		return
	default:
		logging.Warn().Err(err).Msg("Cycle skipped")
		return
	}
	if len(res.Opened) > 0 || len(res.Sealed) > 0 {
		logging.Info().
			Uint64("cycle", res.Cycle).
			Int("aircraft", res.Aircraft).
			Int("opened", len(res.Opened)).
			Int("sealed", len(res.Sealed)).
			Msg("Cycle complete")
	}
}

// RunCycle fetches one snapshot and processes it. A fetch failure skips the
// cycle: no transitions happen and prior state is kept.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("detection engine has no snapshot source")
	}
	start := time.Now()
	snap, err := e.source.Fetch(ctx)
	if err != nil {
		metrics.RecordFeedError(feed.Reason(err))
		metrics.RecordCycle(time.Since(start), true)
		e.statusMu.Lock()
		e.status.SkippedCycles++
		if !feed.IsNoUpdate(err) {
			e.status.LastFeedError = err.Error()
			e.status.LastFeedErrorAt = time.Now().UTC()
		}
		e.statusMu.Unlock()
		return &CycleResult{Skipped: true}, err
	}
	return e.Process(ctx, snap)
}

type candidate struct {
	aircraft     *models.AircraftSnapshot
	sample       models.PositionSample
	prev         models.PositionSample
	hasPrev      bool
	testCrossing bool
}

// Process advances every aircraft by one snapshot, finalizes sealed events,
// persists and publishes a new View.
func (e *Engine) Process(ctx context.Context, snap *models.Snapshot) (*CycleResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	start := time.Now()

	seen := make(map[string]struct{}, len(snap.Aircraft))
	cands := make([]candidate, 0, len(snap.Aircraft))
	for i := range snap.Aircraft {
		a := &snap.Aircraft[i]
		if a.ID == "" || !a.Position.Valid() {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}

		s := a.Sample(snap.Timestamp)
		if e.classifier.InRadius(a.Position) {
			e.history.Record(a.ID, s)
		} else {
			e.history.Forget(a.ID)
			if e.tracker.Forget(a.ID) {
				continue
			}
		}
		prev, ok := e.tracker.Previous(a.ID)
		cands = append(cands, candidate{
			aircraft:     a,
			sample:       s,
			prev:         prev,
			hasPrev:      ok,
			testCrossing: e.tracker.State(a.ID) == models.StateOutside,
		})
	}

	obs, geomErrs, err := e.classifyAll(ctx, cands)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	e.cycle++
	res := &CycleResult{
		Cycle:          e.cycle,
		SnapshotTime:   snap.Timestamp,
		Aircraft:       len(obs),
		GeometryErrors: geomErrs,
	}

	for _, o := range obs {
		e.apply(ctx, e.tracker.Step(o), res)
	}
	for _, id := range e.tracker.IDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		e.apply(ctx, e.tracker.Missing(id, snap.Timestamp), res)
	}
	e.history.Prune(seen)
	e.finalizer.Prune(snap.Timestamp)

	e.flushPending(ctx)
	res.PendingCommits = len(e.pending)

	live := e.tracker.Live()
	e.saveLive(ctx, live)

	if err := e.tracker.CheckInvariants(); err != nil {
		metrics.InvariantViolations.Inc()
		log.Error().Err(err).Msg("Tracker invariant violated")
		res.Invariant = err
	}

	aircraft := e.aircraftViews(obs)
	e.publish(ctx, snap.Timestamp, live, aircraft)
	e.broadcast(MessageLiveUpdate, &LiveNotice{Cycle: e.cycle, Live: live})

	elapsed := time.Since(start)
	metrics.RecordCycle(elapsed, false)
	metrics.AircraftTracked.Set(float64(len(obs)))
	metrics.OpenIncursions.Set(float64(len(live)))
	metrics.PendingCommits.Set(float64(len(e.pending)))
	if snap.Skipped > 0 {
		metrics.FeedRecordsSkipped.Add(float64(snap.Skipped))
	}

	e.statusMu.Lock()
	e.status.Cycles = e.cycle
	e.status.LastCycleAt = time.Now().UTC()
	e.status.LastCycleMs = elapsed.Milliseconds()
	e.status.LastSnapshotAt = snap.Timestamp
	e.status.TrackedAircraft = e.tracker.Len()
	e.status.HistoryAircraft = e.history.Len()
	e.status.OpenIncursions = len(live)
	e.status.PendingCommits = len(e.pending)
	e.status.LiveSaveFailing = e.liveFail
	if res.Invariant != nil {
		e.status.InvariantViolations++
	}
	e.statusMu.Unlock()

	log.Debug().
		Uint64("cycle", e.cycle).
		Int("aircraft", len(obs)).
		Int("open", len(live)).
		Dur("duration", elapsed).
		Msg("Cycle processed")
	return res, nil
}

// classifyAll labels candidates in parallel. The tracker is not touched
// here; it only reads values captured before the fan-out.
func (e *Engine) classifyAll(ctx context.Context, cands []candidate) ([]Observation, int, error) {
	obs := make([]Observation, len(cands))
	var geomErrs atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, gerr := e.observe(&cands[i])
			if gerr != nil {
				geomErrs.Add(1)
				metrics.GeometryErrors.Inc()
				logging.Warn().Err(gerr).Str("aircraft_id", o.Aircraft.ID).Msg("Containment test failed; treating as Vicinity")
			}
			obs[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return obs, int(geomErrs.Load()), nil
}

func (e *Engine) observe(c *candidate) (Observation, error) {
	a := c.aircraft
	cls := e.classifier.Classify(a.Position, a.AltitudeFt, a.GroundSpeedKt)
	o := Observation{Aircraft: a, Sample: c.sample, Label: cls.Display}
	gerr := cls.Err

	if e.classifier.AboveCeiling(a.AltitudeFt) {
		return o, gerr
	}
	in, err := e.target.Contains(a.Position)
	if err != nil {
		o.Label = geo.LabelVicinity
		return o, err
	}
	o.Inside = in

	if !in && c.testCrossing {
		from := a.Position
		if c.hasPrev {
			from = c.prev.Point()
		}
		crossed, err := e.target.SegmentCrosses(from, a.Position)
		if err != nil {
			return o, err
		}
		o.Crossed = crossed
	}
	return o, gerr
}

func (e *Engine) apply(ctx context.Context, out Outcome, res *CycleResult) {
	log := logging.Ctx(ctx)

	if out.Opened != nil {
		ev := out.Opened
		res.Opened = append(res.Opened, ev)
		metrics.IncursionsOpened.Inc()
		log.Info().
			Str("aircraft_id", ev.AircraftID).
			Str("callsign", ev.Callsign).
			Str("zone", ev.Zone).
			Time("entry", ev.EntryTime).
			Int("pre_entry", len(ev.Positions)-1).
			Msg("Incursion opened")
		e.broadcast(MessageIncursionOpened, ev)
	}

	if out.Sealed != nil {
		ev, merged := e.finalizer.Finalize(ctx, out.Sealed)
		e.enqueue(ev, merged)
		e.events.add(ev, !merged)
		res.Sealed = append(res.Sealed, ev)
		if merged {
			res.Merged++
		}
		metrics.RecordSeal(merged)
		log.Info().
			Str("aircraft_id", ev.AircraftID).
			Str("event_id", ev.ID).
			Str("callsign", ev.Callsign).
			Bool("merged", merged).
			Int("positions", len(ev.Positions)).
			Msg("Incursion sealed")

		notice := &SealedNotice{Event: ev, Merged: merged}
		e.broadcast(MessageIncursionSealed, notice)
		e.notify(ctx, notice)
	}
}

func (e *Engine) enqueue(ev *models.IntrusionEvent, merged bool) {
	if p, ok := e.pending[ev.ID]; ok {
		p.event = ev
		return
	}
	e.pending[ev.ID] = &pendingCommit{event: ev, fresh: !merged}
}

// flushPending commits queued events. Failures stay queued for the next
// cycle.
func (e *Engine) flushPending(ctx context.Context) {
	if len(e.pending) == 0 {
		return
	}
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := e.store.Commit(ctx, e.pending[id].event); err != nil {
			metrics.RecordPersistenceError("commit")
			logging.Ctx(ctx).Error().Err(err).Str("event_id", id).Msg("Failed to commit event; retrying next cycle")
			continue
		}
		delete(e.pending, id)
	}
}

// saveLive persists the live table together with every sealed event still
// waiting for its commit.
func (e *Engine) saveLive(ctx context.Context, live []models.LiveEntry) {
	rows := make([]models.LiveEntry, 0, len(live)+len(e.pending))
	rows = append(rows, live...)
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := e.pending[id]
		row := models.LiveEntry{
			AircraftID:  p.event.AircraftID,
			Callsign:    p.event.Callsign,
			PilotID:     p.event.PilotID,
			PilotName:   p.event.PilotName,
			State:       models.StateOutside,
			Event:       p.event.Clone(),
			Pending:     true,
			FirstCommit: p.fresh,
		}
		if p.event.Exit != nil {
			row.LastPosition = *p.event.Exit
		}
		rows = append(rows, row)
	}

	if err := e.store.SaveLive(ctx, rows); err != nil {
		metrics.RecordPersistenceError("save_live")
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist live table; retrying next cycle")
		e.liveFail = true
		return
	}
	e.liveFail = false
}

// loadEvents fills the event cache from the log, then layers uncommitted
// events on top. It reads the whole log and runs only at startup, or after
// a failed startup read.
func (e *Engine) loadEvents(ctx context.Context) error {
	stored, err := e.store.Query(ctx, 0)
	if err != nil {
		return err
	}
	e.events.reset(stored)

	committed := make(map[string]struct{}, len(e.pending))
	for _, ev := range stored {
		if _, ok := e.pending[ev.ID]; ok {
			committed[ev.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := e.pending[id]
		// A row saved before its commit landed is already in the tally.
		if _, ok := committed[id]; ok {
			p.fresh = false
		}
		e.events.add(p.event, p.fresh)
	}
	e.eventsLoaded = true
	return nil
}

func (e *Engine) aircraftViews(obs []Observation) []models.AircraftView {
	out := make([]models.AircraftView, 0, len(obs))
	counts := make(map[string]int, len(geo.AllLabels))
	for _, o := range obs {
		a := o.Aircraft
		out = append(out, models.AircraftView{
			ID:            a.ID,
			Callsign:      a.Callsign,
			Position:      a.Position,
			AltitudeFt:    a.AltitudeFt,
			GroundSpeedKt: a.GroundSpeedKt,
			HeadingDeg:    a.HeadingDeg,
			Zone:          o.Label,
			Buster:        e.tracker.Buster(a.ID),
		})
		counts[string(o.Label)]++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	labels := make([]string, len(geo.AllLabels))
	for i, l := range geo.AllLabels {
		labels[i] = string(l)
	}
	metrics.SetZoneCounts(labels, counts)
	return out
}

func (e *Engine) publish(ctx context.Context, snapTime time.Time, live []models.LiveEntry, aircraft []models.AircraftView) {
	if !e.eventsLoaded {
		if err := e.loadEvents(ctx); err != nil {
			metrics.RecordPersistenceError("query")
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to read event log; view shows events sealed since startup")
		}
	}
	e.view.Store(&View{
		Cycle:        e.cycle,
		GeneratedAt:  time.Now().UTC(),
		SnapshotTime: snapTime,
		Live:         live,
		Aircraft:     aircraft,
		Events:       e.events.events(),
		Leaderboard:  e.events.leaderboard(),
	})
}

// Event returns a sealed event by ID, from the current view when it is
// recent enough and from the event log otherwise. It returns
// store.ErrNotFound for unknown IDs.
func (e *Engine) Event(ctx context.Context, id string) (*models.IntrusionEvent, error) {
	for _, ev := range e.View().Events {
		if ev.ID == id {
			return ev, nil
		}
	}
	ev, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Clear empties the event log, the leaderboard, the dedup memory and any
// uncommitted events, and returns how many events were removed. It waits
// for a running cycle to finish and never interleaves with one. Open
// events in the live table are kept.
func (e *Engine) Clear(ctx context.Context, authorized bool) (int, error) {
	if !authorized {
		return 0, ErrUnauthorized
	}
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	n, err := e.store.Clear(ctx)
	if err != nil {
		metrics.RecordPersistenceError("clear")
		return 0, fmt.Errorf("clear event store: %w", err)
	}
	for _, p := range e.pending {
		if p.fresh {
			n++
		}
	}
	e.pending = make(map[string]*pendingCommit)
	e.finalizer.Reset()
	e.events.reset(nil)
	e.eventsLoaded = true
	// Drop the pending rows from the durable table too, or a restart would
	// bring cleared events back.
	e.saveLive(ctx, e.tracker.Live())

	prev := e.view.Load()
	v := *prev
	v.GeneratedAt = time.Now().UTC()
	v.Events = []*models.IntrusionEvent{}
	v.Leaderboard = []models.LeaderboardEntry{}
	e.view.Store(&v)

	metrics.EventsCleared.Add(float64(n))
	metrics.PendingCommits.Set(0)
	e.statusMu.Lock()
	e.status.PendingCommits = 0
	e.status.LiveSaveFailing = e.liveFail
	e.statusMu.Unlock()

	logging.Info().Int("cleared", n).Msg("Event log cleared")
	return n, nil
}

func (e *Engine) broadcast(messageType string, data interface{}) {
	e.mu.RLock()
	b := e.broadcaster
	e.mu.RUnlock()
	if b != nil {
		b.BroadcastJSON(messageType, data)
	}
}

func (e *Engine) notify(ctx context.Context, notice *SealedNotice) {
	e.mu.RLock()
	notifiers := make([]Notifier, 0, len(e.notifiers))
	for _, n := range e.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	e.mu.RUnlock()

	for _, n := range notifiers {
		go func(n Notifier) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			if err := n.Send(sendCtx, notice); err != nil {
				logging.Error().Err(err).Str("notifier", n.Name()).Str("event_id", notice.Event.ID).Msg("failed to send incursion notice")
			}
		}(n)
	}
}
