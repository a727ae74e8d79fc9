package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2030, time.March, 15, 0, 0, 0, 0, time.UTC)

func startHub(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, reservation.Court(r.URL.Query().Get("court")), testDay)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, court string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?court="+court, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversToWatchersOfTheSameDay(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	hub := NewHub(nil, metrics)
	url := startHub(t, hub)

	tenis := dial(t, url, "Tenis")
	futbol := dial(t, url, "Futbol")
	require.Eventually(t, func() bool { return hub.Watchers() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AvailabilityWatchers))

	hub.SlotChanged(context.Background(), reservation.SlotChange{
		Court:    "Tenis",
		Date:     testDay,
		TimeSlot: "10:00-11:00",
		Status:   reservation.StatusCancelled,
	})

	var ev SlotEvent
	require.NoError(t, tenis.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, tenis.ReadJSON(&ev))
	assert.Equal(t, SlotEvent{
		Type:       "slot_changed",
		Court:      "Tenis",
		Date:       "2030-03-15",
		TimeSlot:   "10:00-11:00",
		Status:     "cancelled",
		Disponible: true,
	}, ev)

	require.NoError(t, futbol.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := futbol.ReadMessage()
	assert.Error(t, err, "watchers of other courts receive nothing")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	hub := NewHub(nil, metrics)
	url := startHub(t, hub)

	conn := dial(t, url, "Tenis")
	require.Eventually(t, func() bool { return hub.Watchers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Watchers() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AvailabilityWatchers))
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"http://localhost:5173"}, nil)
	url := startHub(t, hub)

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"?court=Tenis", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.Watchers())
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil, nil)
	url := startHub(t, hub)
	dial(t, url, "Tenis")
	dial(t, url, "Tenis")
	require.Eventually(t, func() bool { return hub.Watchers() == 2 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Watchers())
}

func TestNewSlotEvent_Taken(t *testing.T) {
	ev := NewSlotEvent(reservation.SlotChange{Court: "Fútbol 1", Date: testDay, TimeSlot: "08:00-09:00", Status: reservation.StatusPending})
	assert.False(t, ev.Disponible)
	assert.Equal(t, "pending", ev.Status)
}
