package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub, roomID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Subscribe(roomID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h, "room-1")

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers("room-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Broadcast("room-1", EventNewRound, 3)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != EventNewRound || msg.RoomID != "room-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := NewHub(nil)
	h.Broadcast("ghost", EventGameOver, nil)
	if n := h.Subscribers("ghost"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestRoomsIsolated(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h, "room-a")

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers("room-a") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Broadcast("room-b", EventNewsUpdate, []string{"other room"})
	h.Broadcast("room-a", EventNewsUpdate, []string{"mine"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.RoomID != "room-a" {
		t.Fatalf("received event for wrong room: %+v", msg)
	}
}
