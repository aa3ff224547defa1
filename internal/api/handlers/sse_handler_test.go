package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samdiagnosis/backend/internal/domain/entities"
	"github.com/samdiagnosis/backend/internal/domain/providers"
)

type stubEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.ReportEvent
}

func newStubEventBus() *stubEventBus {
	return &stubEventBus{subscribers: make(map[string][]chan *entities.ReportEvent)}
}

func (b *stubEventBus) Publish(_ context.Context, channel string, event *entities.ReportEvent) error {
	b.mu.RLock()
	channels := append([]chan *entities.ReportEvent(nil), b.subscribers[channel]...)
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *stubEventBus) Subscribe(_ context.Context, channel string) (<-chan *entities.ReportEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.ReportEvent, 10)
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	return ch, nil
}

func (b *stubEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, channel)
	return nil
}

func (b *stubEventBus) Close() error { return nil }

func (b *stubEventBus) subscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}

func runStream(t *testing.T, serve func(http.ResponseWriter, *http.Request), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		serve(w, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}

	return w
}

func TestStreamReportUpdates_EstablishesConnection(t *testing.T) {
	eventBus := newStubEventBus()
	handler := NewSSEHandler(eventBus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/reports", nil)
	w := runStream(t, handler.StreamReportUpdates, req)

	result := w.Result()
	assert.Equal(t, "text/event-stream", result.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", result.Header.Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "event: connected")
	assert.Equal(t, 1, eventBus.subscriberCount(providers.EventChannelReportUpdates))
}

func TestStreamReportUpdates_ForwardsPublishedEvents(t *testing.T) {
	eventBus := newStubEventBus()
	handler := NewSSEHandler(eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/stream/reports", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamReportUpdates(w, req)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	err := eventBus.Publish(context.Background(), providers.EventChannelReportUpdates, &entities.ReportEvent{
		ID:        "evt-1",
		Type:      entities.ReportEventEnriched,
		ReportID:  "r1",
		PatientID: "p1",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}

	body := w.Body.String()
	assert.Contains(t, body, "event: "+entities.ReportEventEnriched)
	assert.Contains(t, body, `"report_id":"r1"`)
}

func TestStreamPatientReportUpdates_UsesPatientChannel(t *testing.T) {
	eventBus := newStubEventBus()
	handler := NewSSEHandler(eventBus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/patients/p7/reports", nil)
	req.SetPathValue("id", "p7")
	w := runStream(t, handler.StreamPatientReportUpdates, req)

	assert.Equal(t, 1, eventBus.subscriberCount(providers.GetPatientChannel("p7")))
	assert.True(t, strings.Contains(w.Body.String(), `"patient_id":"p7"`))
}

func TestStreamPatientReportUpdates_RequiresPatientID(t *testing.T) {
	handler := NewSSEHandler(newStubEventBus())

	req := httptest.NewRequest(http.MethodGet, "/api/stream/patients//reports", nil)
	w := httptest.NewRecorder()

	handler.StreamPatientReportUpdates(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
