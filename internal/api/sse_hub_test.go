package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	hub := NewSSEHub(internal.NewLogger(internal.LogLevelError))
	t.Cleanup(hub.Close)
	return hub
}

func TestPublishReachesSubscribersOfSameKey(t *testing.T) {
	hub := newTestHub(t)

	sheet, cancelSheet, err := hub.Subscribe("sheet")
	require.NoError(t, err)
	defer cancelSheet()
	other, cancelOther, err := hub.Subscribe("other")
	require.NoError(t, err)
	defer cancelOther()

	hub.Publish(models.GridEvent{Key: "sheet", Type: models.EventComputed, Seq: 3})

	select {
	case event := <-sheet:
		assert.Equal(t, models.EventComputed, event.Type)
		assert.Equal(t, uint64(3), event.Seq)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for other key: %+v", event)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCancelUnregisters(t *testing.T) {
	hub := newTestHub(t)

	events, cancel, err := hub.Subscribe("sheet")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount("sheet") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []core.GridKey{"sheet"}, hub.ActiveGrids())

	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount("sheet"))
	assert.Empty(t, hub.ActiveGrids())
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	hub := NewSSEHub(internal.NewLogger(internal.LogLevelError))
	events, _, err := hub.Subscribe("sheet")
	require.NoError(t, err)

	hub.Close()
	hub.Close()

	_, open := <-events
	assert.False(t, open, "close disconnects clients")

	_, _, err = hub.Subscribe("sheet")
	assert.ErrorIs(t, err, core.ErrChannelClosed)
}

// streamRecorder is an httptest recorder that gin can stream into
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	closed chan bool
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *streamRecorder) WriteString(s string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.WriteString(s)
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestHandleSSEStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t)

	router := gin.New()
	router.GET("/api/grids/:key/events", hub.HandleSSE)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/grids/sheet/events", nil).WithContext(ctx)
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount("sheet") == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(models.GridEvent{Key: "sheet", Type: models.EventEdited, Seq: 1})

	require.Eventually(t, func() bool {
		return strings.Contains(rec.body(), "event:edited")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, rec.body(), `"event_type":"edited"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestHandleSSERejectsBadKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t)

	router := gin.New()
	router.GET("/api/grids/:key/events", hub.HandleSSE)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/grids/%20/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
