package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newHubServer(t *testing.T, hub *Hub, filter Filter, fetch FetchFunc[any]) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := hub.Attach(r.URL.Query().Get("user"), conn)
		defer hub.Detach(client)

		if err := client.Watch("feed", filter, fetch); err != nil {
			client.Push(Event{Type: "error", Message: err.Error()})
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func dialHub(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestHubPushesSnapshotsOnMatchingChanges(t *testing.T) {
	bus := NewBus(discardLogger())
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)
	hub := NewHub(bus, dispatcher, discardLogger())

	var version atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		return map[string]int64{"version": version.Load()}, nil
	}

	server := newHubServer(t, hub, Filter{Tables: []string{TablePosts}}, fetch)
	defer server.Close()

	conn := dialHub(t, server, "alice")
	defer conn.Close()

	first := readEvent(t, conn)
	if first.Type != "feed" || first.Seq != 1 {
		t.Fatalf("unexpected initial event %+v", first)
	}

	waitForCondition(t, func() bool { return bus.Len() == 1 }, time.Second)

	version.Store(7)
	_ = bus.Publish(context.Background(), Change{Table: TablePosts, Op: OpInsert, RowID: "p-1"})

	next := readEvent(t, conn)
	if next.Type != "feed" || next.Seq != 2 {
		t.Fatalf("unexpected refresh event %+v", next)
	}
	data, ok := next.Data.(map[string]any)
	if !ok || data["version"] != float64(7) {
		t.Fatalf("expected refetched snapshot, got %#v", next.Data)
	}
}

func TestHubDetachRemovesWatches(t *testing.T) {
	bus := NewBus(discardLogger())
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)
	hub := NewHub(bus, dispatcher, discardLogger())

	fetch := func(ctx context.Context) (any, error) { return []string{}, nil }
	server := newHubServer(t, hub, Filter{Tables: []string{TableMessages}}, fetch)
	defer server.Close()

	conn := dialHub(t, server, "bob")
	readEvent(t, conn)

	waitForCondition(t, func() bool { return hub.Connected("bob") == 1 }, time.Second)

	_ = conn.Close()

	waitForCondition(t, func() bool { return hub.Connected("bob") == 0 && bus.Len() == 0 }, 2*time.Second)
}

func TestClientWatchReplacesExistingWatch(t *testing.T) {
	bus := NewBus(discardLogger())
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)
	hub := NewHub(bus, dispatcher, discardLogger())

	upgrader := websocket.Upgrader{}
	attached := make(chan *Client, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Attach("carol", conn)
		defer hub.Detach(client)
		attached <- client
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	conn := dialHub(t, server, "carol")
	defer conn.Close()
	client := <-attached

	fetch := func(ctx context.Context) (any, error) { return "ok", nil }
	filter := Filter{Tables: []string{TableInvitations}, Participants: []string{"carol"}}
	if err := client.Watch("invitations", filter, fetch); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := client.Watch("invitations", filter, fetch); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected re-watch to replace the subscription, got %d", bus.Len())
	}

	client.Unwatch("invitations")
	if bus.Len() != 0 {
		t.Fatalf("expected unwatch to remove the subscription, got %d", bus.Len())
	}
}

func TestClientUnwatchDropsInFlightSnapshot(t *testing.T) {
	bus := NewBus(discardLogger())
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)
	hub := NewHub(bus, dispatcher, discardLogger())

	upgrader := websocket.Upgrader{}
	attached := make(chan *Client, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Attach("dave", conn)
		defer hub.Detach(client)
		attached <- client
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	conn := dialHub(t, server, "dave")
	defer conn.Close()
	client := <-attached

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "thread-with-old-peer", nil
	}
	filter := Filter{Tables: []string{TableMessages}, Participants: []string{"dave", "x"}}
	if err := client.Watch("thread:x", filter, slow); err != nil {
		t.Fatalf("watch: %v", err)
	}
	<-started

	client.Unwatch("thread:x")
	close(release)

	fresh := func(ctx context.Context) (any, error) { return "fresh", nil }
	if err := client.Watch("thread:x", filter, fresh); err != nil {
		t.Fatalf("watch again: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "thread:x" || ev.Data != "fresh" {
		t.Fatalf("expected only the new watch to deliver, got %+v", ev)
	}
	if ev.Seq != 2 {
		t.Fatalf("expected seq to continue at 2 after re-watch, got %d", ev.Seq)
	}
}
