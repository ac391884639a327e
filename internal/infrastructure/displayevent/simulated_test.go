package displayevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func nextEvent(t *testing.T, s *SimulatedSource) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, s *SimulatedSource, within time.Duration) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(within):
	}
}

func newTestSimulated(t *testing.T, period time.Duration) *SimulatedSource {
	t.Helper()
	s := NewSimulatedSource(zap.NewNop(), SimulatedOptions{Period: period, DisplayID: 3})
	t.Cleanup(func() { _ = s.Close() })

	if ev := nextEvent(t, s); ev.Kind != KindHotplug || !ev.Connected || ev.DisplayID != 3 {
		t.Fatalf("first event = %+v, want connected hotplug", ev)
	}
	return s
}

func TestSimulated_NoPulseWithoutRequest(t *testing.T) {
	s := newTestSimulated(t, 2*time.Millisecond)
	expectNoEvent(t, s, 20*time.Millisecond)
}

func TestSimulated_PulseAlignedToPeriod(t *testing.T) {
	const period = 4 * time.Millisecond
	s := newTestSimulated(t, period)

	if err := s.RequestNextVsync(); err != nil {
		t.Fatalf("RequestNextVsync: %v", err)
	}
	ev := nextEvent(t, s)
	if ev.Kind != KindVsync || ev.Count != 1 {
		t.Fatalf("event = %+v, want first vsync", ev)
	}
	if ev.Timestamp%int64(period) != 0 {
		t.Fatalf("timestamp %d not on a period boundary", ev.Timestamp)
	}
}

func TestSimulated_RequestsCoalesce(t *testing.T) {
	s := newTestSimulated(t, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = s.RequestNextVsync()
	}
	if ev := nextEvent(t, s); ev.Kind != KindVsync {
		t.Fatalf("event = %+v, want vsync", ev)
	}
	expectNoEvent(t, s, 25*time.Millisecond)
}

func TestSimulated_CountIncreases(t *testing.T) {
	s := newTestSimulated(t, 2*time.Millisecond)

	var last Event
	for i := 0; i < 3; i++ {
		_ = s.RequestNextVsync()
		ev := nextEvent(t, s)
		if ev.Count != last.Count+1 || (i > 0 && ev.Timestamp <= last.Timestamp) {
			t.Fatalf("pulse %d = %+v after %+v", i, ev, last)
		}
		last = ev
	}
}

func TestSimulated_ConfigDelivery(t *testing.T) {
	s := newTestSimulated(t, time.Second)

	if err := s.SetPeriod(time.Second / 90); err != nil {
		t.Fatalf("SetPeriod: %v", err)
	}
	expectNoEvent(t, s, 10*time.Millisecond)

	_ = s.SetConfigChangedDelivery(true)
	if err := s.SetPeriod(time.Second / 120); err != nil {
		t.Fatalf("SetPeriod: %v", err)
	}
	ev := nextEvent(t, s)
	if ev.Kind != KindConfigChanged || ev.VsyncPeriod != int64(time.Second/120) || ev.ConfigID != 2 {
		t.Fatalf("event = %+v, want config change to 120Hz", ev)
	}
	if s.Period() != time.Second/120 {
		t.Fatalf("period = %s", s.Period())
	}
}

func TestSimulated_SetPeriodRejectsNonPositive(t *testing.T) {
	s := newTestSimulated(t, time.Millisecond)
	if err := s.SetPeriod(0); err == nil {
		t.Fatal("SetPeriod(0) accepted")
	}
}

func TestSimulated_Closed(t *testing.T) {
	s := NewSimulatedSource(zap.NewNop(), SimulatedOptions{})
	_ = s.Close()
	_ = s.Close()

	if err := s.RequestNextVsync(); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("RequestNextVsync after Close = %v", err)
	}
	if err := s.SetConfigChangedDelivery(true); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("SetConfigChangedDelivery after Close = %v", err)
	}
	if err := s.SetPeriod(time.Millisecond); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("SetPeriod after Close = %v", err)
	}
}

func TestSimulatedFactory_ObservesOpened(t *testing.T) {
	var opened []*SimulatedSource
	f := SimulatedFactory(zap.NewNop(), SimulatedOptions{}, func(s *SimulatedSource) {
		opened = append(opened, s)
	})

	src, err := f(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	if len(opened) != 1 || Source(opened[0]) != src {
		t.Fatal("onOpen did not observe the opened source")
	}
	if opened[0].Period() != DefaultVsyncPeriod {
		t.Fatalf("default period = %s", opened[0].Period())
	}
}
