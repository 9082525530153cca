package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func validEvent(stage Stage) Event {
	return Event{
		ScanID:      "scan-1",
		TS:          time.Now().UTC(),
		Stage:       stage,
		URL:         "https://example.com/page",
		StatusClass: Status2xx,
	}
}

func TestHubFlushesOnClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	hub.Emit(validEvent(StageScanStart))
	hub.Emit(validEvent(StagePageFetched))
	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, StageScanStart, events[0].Stage)
	require.True(t, sink.closed)
}

func TestHubFlushesOnBatchSize(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent(StagePageFetched))
	hub.Emit(validEvent(StagePageFetched))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubFlushesOnTimer(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent(StagePageFetched))
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StagePageFetched})      // no timestamp
	hub.Emit(Event{TS: time.Now(), Stage: "BAD"}) // unknown stage
	require.NoError(t, hub.Close(context.Background()))

	require.Empty(t, sink.snapshot())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(StageScanStart))
	require.Empty(t, sink.snapshot())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	cases := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"valid scan start", Event{ScanID: "s", TS: now, Stage: StageScanStart}, false},
		{"valid cycle done", Event{TS: now, Stage: StageCycleDone}, false},
		{"valid cycle error", Event{TS: now, Stage: StageCycleError}, false},
		{"missing timestamp", Event{ScanID: "s", Stage: StageScanStart}, true},
		{"missing scan id", Event{TS: now, Stage: StageScanDone}, true},
		{"page fetched without status class", Event{ScanID: "s", TS: now, Stage: StagePageFetched, URL: "u"}, true},
		{"page failed without url", Event{ScanID: "s", TS: now, Stage: StagePageFailed}, true},
		{"negative duration", Event{ScanID: "s", TS: now, Stage: StageScanDone, Dur: -time.Second}, true},
		{"unknown stage", Event{ScanID: "s", TS: now, Stage: "WAT"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, Status2xx, ClassifyStatus(204))
	require.Equal(t, Status3xx, ClassifyStatus(301))
	require.Equal(t, Status4xx, ClassifyStatus(404))
	require.Equal(t, Status5xx, ClassifyStatus(503))
	require.Equal(t, StatusOther, ClassifyStatus(0))
}
