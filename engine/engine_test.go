package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parkwatch/detection"
	"parkwatch/occupancy"
	"parkwatch/zones"
)

// stubSource produces a fixed number of blank frames.
type stubSource struct {
	frames int64
	closed atomic.Bool
}

func (s *stubSource) Read(dst *gocv.Mat) bool {
	if s.closed.Load() {
		return false
	}
	if atomic.AddInt64(&s.frames, -1) < 0 {
		return false
	}
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(dst)
	return true
}

func (s *stubSource) Close() error {
	s.closed.Store(true)
	return nil
}

func endlessSource() *stubSource { return &stubSource{frames: 1 << 40} }

type slowBackend struct {
	delay time.Duration
}

func (b *slowBackend) Detect(frame gocv.Mat) (*detection.Result, error) {
	time.Sleep(b.delay)
	return &detection.Result{}, nil
}

func (b *slowBackend) Close() error { return nil }

// faultBackend panics on its first call and is quiet afterwards.
type faultBackend struct {
	calls atomic.Int64
}

func (b *faultBackend) Detect(frame gocv.Mat) (*detection.Result, error) {
	if b.calls.Add(1) == 1 {
		panic("inference exploded")
	}
	return &detection.Result{}, nil
}

func (b *faultBackend) Close() error { return nil }

func testList(t *testing.T) zones.List {
	t.Helper()
	list, err := zones.Parse([]byte(`[
		[[0, 0], [10, 0], [10, 10], [0, 10]],
		[[20, 0], [30, 0], [30, 10], [20, 10]]
	]`))
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func drain(t *testing.T, e *Engine) []map[int]occupancy.Status {
	t.Helper()
	var states []map[int]occupancy.Status
	for ev := range e.Events() {
		if ev.Zones != nil {
			states = append(states, ev.Zones.States)
		} else {
			states = append(states, nil)
		}
		ev.Frame.Close()
	}
	return states
}

func TestEndOfStreamFinishes(t *testing.T) {
	e := New(Config{
		Open: func() (FrameSource, error) { return &stubSource{frames: 3}, nil },
		Mode: ModeVideo,
		Log:  zerolog.Nop(),
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	states := drain(t, e)
	if len(states) != 3 {
		t.Errorf("got %d events, want 3", len(states))
	}
	for i, st := range states {
		if st != nil {
			t.Errorf("event %d carries zone states in video mode", i)
		}
	}

	<-e.Done()
	if e.Reason() != ReasonEndOfStream {
		t.Errorf("reason = %v, want end of stream", e.Reason())
	}
	if e.State() != StateFinished {
		t.Errorf("state = %v, want finished", e.State())
	}
}

func TestStopWithinGraceWhileDetectorIsSlow(t *testing.T) {
	src := endlessSource()
	e := New(Config{
		Open:     func() (FrameSource, error) { return src, nil },
		Detector: detection.NewAdapter(&slowBackend{delay: 100 * time.Millisecond}, 2, 0.35, zerolog.Nop()),
		Zones:    testList(t),
		Mode:     ModeYOLO,
		Grace:    2 * time.Second,
		Log:      zerolog.Nop(),
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ev := <-e.Events()
	ev.Frame.Close()

	start := time.Now()
	e.Stop()
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("stop took %v, want well under the grace bound", elapsed)
	}

	<-e.Done()
	if e.Reason() != ReasonUser {
		t.Errorf("reason = %v, want stopped by user", e.Reason())
	}
	if e.State() != StateStopped {
		t.Errorf("state = %v, want stopped", e.State())
	}
	if !src.closed.Load() {
		t.Error("source was not released")
	}
}

func TestFrameFaultIsContained(t *testing.T) {
	e := New(Config{
		Open:     func() (FrameSource, error) { return &stubSource{frames: 5}, nil },
		Detector: detection.NewAdapter(&faultBackend{}, 2, 0.35, zerolog.Nop()),
		Zones:    testList(t),
		Mode:     ModeYOLO,
		Log:      zerolog.Nop(),
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	states := drain(t, e)
	// The first frame's panic is swallowed; the remaining four publish.
	if len(states) != 4 {
		t.Errorf("got %d events, want 4", len(states))
	}

	<-e.Done()
	if e.Reason() != ReasonEndOfStream {
		t.Errorf("reason = %v, want end of stream", e.Reason())
	}
}

func TestAssignedZoneTakesEffect(t *testing.T) {
	e := New(Config{
		Open:  func() (FrameSource, error) { return &stubSource{frames: 10}, nil },
		Zones: testList(t),
		Mode:  ModeMath,
		Log:   zerolog.Nop(),
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := <-e.Events()
	if first.Zones == nil || first.Zones.States[1] != occupancy.StatusFree {
		t.Fatalf("initial state = %v, want zone 1 free", first.Zones)
	}
	first.Frame.Close()

	e.SetAssignedZone(1)
	states := drain(t, e)
	if len(states) == 0 {
		t.Fatal("no events after assignment")
	}
	if last := states[len(states)-1]; last[1] != occupancy.StatusAssigned {
		t.Errorf("final state for zone 1 = %v, want assigned", last[1])
	}
}

func TestStartFailureReportsReason(t *testing.T) {
	e := New(Config{
		Open: func() (FrameSource, error) { return nil, errors.New("no such file") },
		Mode: ModeVideo,
		Log:  zerolog.Nop(),
	})
	if err := e.Start(); err == nil {
		t.Fatal("Start should fail when the source cannot open")
	}

	<-e.Done()
	if e.Reason() != ReasonStartFailure {
		t.Errorf("reason = %v, want failed to start", e.Reason())
	}
}

func TestYOLOModeRequiresDetector(t *testing.T) {
	e := New(Config{
		Open: func() (FrameSource, error) { return &stubSource{frames: 1}, nil },
		Mode: ModeYOLO,
		Log:  zerolog.Nop(),
	})
	if err := e.Start(); err == nil {
		t.Fatal("Start should fail without a detector")
	}
	if e.Reason() != ReasonStartFailure {
		t.Errorf("reason = %v, want failed to start", e.Reason())
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"YOLOV": ModeYOLO,
		"yolo":  ModeYOLO,
		"math":  ModeMath,
		"Video": ModeVideo,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("mystery"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
