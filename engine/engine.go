// Package engine runs the per-frame occupancy pipeline: acquire, detect,
// match, resolve, annotate, publish. One engine owns one video session.
package engine

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parkwatch/detection"
	"parkwatch/occupancy"
	"parkwatch/overlay"
	"parkwatch/pkg/geometry"
	"parkwatch/zones"
)

// statusEvery is the frame interval between FPS status reports.
const statusEvery = 30

const defaultGrace = 2 * time.Second

// Mode selects how much of the pipeline runs per frame.
type Mode int

const (
	// ModeYOLO runs detection and zone resolution.
	ModeYOLO Mode = iota
	// ModeMath resolves zones from manual assignment only, no detector.
	ModeMath
	// ModeVideo passes frames through untouched and publishes no states.
	ModeVideo
)

func (m Mode) String() string {
	switch m {
	case ModeYOLO:
		return "YOLOV"
	case ModeMath:
		return "MATH"
	case ModeVideo:
		return "VIDEO"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YOLOV", "YOLO":
		return ModeYOLO, nil
	case "MATH":
		return ModeMath, nil
	case "VIDEO":
		return ModeVideo, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// State is the engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StopReason records why a session ended. Valid once Done is closed.
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonUser
	ReasonEndOfStream
	ReasonStartFailure
)

func (r StopReason) String() string {
	switch r {
	case ReasonUser:
		return "stopped by user"
	case ReasonEndOfStream:
		return "end of stream"
	case ReasonStartFailure:
		return "failed to start"
	}
	return "none"
}

// Event is one published pipeline iteration. Frame ownership transfers
// to the receiver, which must Close it. Zones is nil in video mode; the
// frame and its matching resolution always travel together.
type Event struct {
	Frame gocv.Mat
	Zones *occupancy.Resolution
}

// Config wires one streaming session.
type Config struct {
	// Open produces the frame source. Called once during Start so an
	// unopenable source fails the session before the loop exists.
	Open func() (FrameSource, error)

	// Detector is required in ModeYOLO and ignored otherwise.
	Detector *detection.Adapter

	Zones    zones.List
	Renderer *overlay.Renderer
	Mode     Mode

	// Grace bounds the wait for the loop to observe a stop request
	// before the source is force-closed. Zero means the default.
	Grace time.Duration

	Log zerolog.Logger
}

// Engine drives the frame loop for one session. Events and Status are
// consumed by exactly one reader; assigned and highlighted indices may
// be set from any goroutine and take effect on the next iteration.
type Engine struct {
	cfg      Config
	id       string
	log      zerolog.Logger
	renderer *overlay.Renderer

	state       atomic.Int32
	cancel      atomic.Bool
	assigned    atomic.Int64
	highlighted atomic.Int64

	src   FrameSource
	stats *loopStats

	events   chan Event
	status   chan string
	stopc    chan struct{}
	loopDone chan struct{}
	done     chan struct{}

	reason      StopReason
	stopOnce    sync.Once
	finishOnce  sync.Once
	warnedZones bool
}

// New creates an idle engine for one session.
func New(cfg Config) *Engine {
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.Renderer == nil {
		cfg.Renderer = overlay.NewRenderer()
	}
	id := uuid.NewString()
	e := &Engine{
		cfg:      cfg,
		id:       id,
		log:      cfg.Log.With().Str("session", id).Logger(),
		renderer: cfg.Renderer,
		stats:    newLoopStats(),
		events:   make(chan Event),
		status:   make(chan string, 16),
		stopc:    make(chan struct{}),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.assigned.Store(int64(occupancy.NoZone))
	e.highlighted.Store(int64(occupancy.NoZone))
	return e
}

// Start validates preconditions, opens the source and launches the frame
// loop. On failure the engine lands in a terminal state with
// ReasonStartFailure and no partial state behind it.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return fmt.Errorf("engine is not idle")
	}
	if e.cfg.Mode == ModeYOLO && e.cfg.Detector == nil {
		e.finish(ReasonStartFailure, "Detector not loaded.")
		return fmt.Errorf("mode %s requires a detector", e.cfg.Mode)
	}
	if e.cfg.Open == nil {
		e.finish(ReasonStartFailure, "No video source configured.")
		return fmt.Errorf("no source open function configured")
	}

	src, err := e.cfg.Open()
	if err != nil {
		e.finish(ReasonStartFailure, "Video capture failed to open.")
		return fmt.Errorf("open source: %w", err)
	}
	e.src = src

	e.state.Store(int32(StateRunning))
	e.log.Info().
		Stringer("mode", e.cfg.Mode).
		Int("zones", len(e.cfg.Zones)).
		Msg("session started")
	go e.loop()
	return nil
}

// Stop requests cancellation and waits for the loop to exit. The loop
// polls the flag once per iteration; if it stays blocked past the grace
// period the source is closed underneath it to break the read. Safe to
// call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		select {
		case <-e.done:
			return
		default:
		}
		if State(e.state.Load()) != StateRunning {
			e.cancel.Store(true)
			return
		}
		e.state.Store(int32(StateStopping))
		e.cancel.Store(true)
		close(e.stopc)

		select {
		case <-e.loopDone:
		case <-time.After(e.cfg.Grace):
			e.log.Warn().Msg("grace period expired, forcing source closed")
			e.src.Close()
			select {
			case <-e.loopDone:
			case <-time.After(e.cfg.Grace):
				e.log.Error().Msg("frame loop did not exit after forced close")
			}
		}
	})
}

// SetAssignedZone sets the assigned zone index, occupancy.NoZone to
// clear. Last writer wins; takes effect on the next iteration.
func (e *Engine) SetAssignedZone(index int) {
	e.assigned.Store(int64(index))
}

// SetHighlightedZone sets the highlighted zone index, occupancy.NoZone
// to clear.
func (e *Engine) SetHighlightedZone(index int) {
	e.highlighted.Store(int64(index))
}

// Events delivers one value per processed frame. Closed when the
// session ends.
func (e *Engine) Events() <-chan Event { return e.events }

// Status delivers rate-limited human-readable progress strings. Values
// are dropped when the consumer lags.
func (e *Engine) Status() <-chan string { return e.status }

// Done is closed when the session reaches a terminal state.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Reason reports why the session ended. Valid once Done is closed.
func (e *Engine) Reason() StopReason { return e.reason }

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) ID() string { return e.id }

func (e *Engine) loop() {
	defer close(e.loopDone)
	defer e.src.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	e.statusf("Video processing started.")
	for !e.cancel.Load() {
		readStart := time.Now()
		if ok := e.src.Read(&frame); !ok || frame.Empty() {
			e.finish(ReasonEndOfStream, "End of video or read error. Stopping stream.")
			return
		}
		e.iterate(frame, time.Since(readStart))
	}
	e.finish(ReasonUser, "Video processing stopped.")
}

// iterate runs one frame through the pipeline. A panic anywhere in the
// pass is contained to this frame; the loop moves on to the next one.
func (e *Engine) iterate(frame gocv.Mat, readDur time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("cause", r).Msg("frame processing failed, skipping frame")
			e.statusf("ERROR processing frame: %v", r)
		}
	}()

	var detectDur, renderDur time.Duration
	dets := &detection.Result{}
	if e.cfg.Mode == ModeYOLO {
		start := time.Now()
		dets = e.cfg.Detector.Detect(frame)
		detectDur = time.Since(start)
	}

	var ev Event
	if e.cfg.Mode == ModeVideo {
		ev = Event{Frame: frame.Clone()}
	} else {
		centers := make([]geometry.Point, dets.Len())
		for i, r := range dets.Rects {
			centers[i] = geometry.RectCenter(r)
		}
		matches, skipped := occupancy.MatchCenters(centers, e.cfg.Zones)
		if len(skipped) > 0 && !e.warnedZones {
			e.warnedZones = true
			e.log.Warn().Ints("zones", skipped).Msg("degenerate zones skipped for this session")
		}
		res := occupancy.Resolve(e.cfg.Zones, matches,
			int(e.assigned.Load()), int(e.highlighted.Load()))

		start := time.Now()
		ev = Event{Frame: e.renderer.Annotate(frame, e.cfg.Zones, res, dets), Zones: &res}
		renderDur = time.Since(start)
	}

	if !e.publish(ev) {
		return
	}

	frames, fps := e.stats.frame(readDur, detectDur, renderDur)
	if frames%statusEvery == 0 {
		e.statusf("Processing... FPS: %.1f", fps)
	}
}

// publish hands the event to the consumer. A pending stop wins over a
// slow consumer so cancellation is never held up by a full channel.
func (e *Engine) publish(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	case <-e.stopc:
		ev.Frame.Close()
		return false
	}
}

func (e *Engine) finish(reason StopReason, msg string) {
	e.finishOnce.Do(func() {
		if e.cancel.Load() {
			reason = ReasonUser
		}
		e.reason = reason
		if reason == ReasonUser {
			e.state.Store(int32(StateStopped))
		} else {
			e.state.Store(int32(StateFinished))
		}
		e.statusf(msg)

		read, detect, render := e.stats.averages()
		e.log.Info().
			Stringer("reason", reason).
			Dur("avg_read", read).
			Dur("avg_detect", detect).
			Dur("avg_render", render).
			Msg("session ended")

		close(e.events)
		close(e.done)
	})
}

func (e *Engine) statusf(format string, args ...interface{}) {
	select {
	case e.status <- fmt.Sprintf(format, args...):
	default:
	}
}
