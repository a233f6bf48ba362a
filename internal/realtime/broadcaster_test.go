package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialSubscriber spins up a server-side connection subscribed to scope and
// returns the client side of the socket.
func dialSubscriber(t *testing.T, b *Broadcaster, scope string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		b.Subscribe(scope, conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBroadcaster_BroadcastBoard(t *testing.T) {
	b := NewBroadcaster(nil)
	client := dialSubscriber(t, b, "org-1")

	// Wait for the server side to register
	deadline := time.Now().Add(time.Second)
	for b.ConnectionCount("org-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.ConnectionCount("org-1") != 1 {
		t.Fatal("expected one subscriber for org-1")
	}

	board := map[string][]string{
		"now":  {"q1", "q2"},
		"next": {"q3"},
	}
	b.BroadcastBoard("org-1", board)

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var event BoardEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to parse event: %v", err)
	}
	if event.Type != EventBoardUpdated {
		t.Errorf("type = %q, want %q", event.Type, EventBoardUpdated)
	}
	if event.Scope != "org-1" {
		t.Errorf("scope = %q, want org-1", event.Scope)
	}
	if len(event.Board["now"]) != 2 || event.Board["now"][0] != "q1" {
		t.Errorf("unexpected board payload: %v", event.Board)
	}
}

func TestBroadcaster_ScopeIsolation(t *testing.T) {
	b := NewBroadcaster(nil)
	client := dialSubscriber(t, b, "org-a")

	deadline := time.Now().Add(time.Second)
	for b.ConnectionCount("org-a") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcast to a different scope; the org-a subscriber must not see it
	b.BroadcastBoard("org-b", map[string][]string{"now": {"q9"}})

	client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("expected no message for unrelated scope")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.Subscribe("org-1", conn)
		b.Unsubscribe(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.ConnectionCount("org-1") == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if b.ConnectionCount("org-1") != 0 {
		t.Error("expected zero subscribers after unsubscribe")
	}
}

// Concurrent broadcasts to one scope must serialize per connection:
// gorilla/websocket panics on concurrent writers.
func TestBroadcaster_ConcurrentBroadcasts(t *testing.T) {
	b := NewBroadcaster(nil)
	client := dialSubscriber(t, b, "org-1")

	deadline := time.Now().Add(time.Second)
	for b.ConnectionCount("org-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.ConnectionCount("org-1") != 1 {
		t.Fatal("expected one subscriber for org-1")
	}

	const writers = 4
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.BroadcastBoard("org-1", map[string][]string{"now": {"q1"}})
			}
		}()
	}
	wg.Wait()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < writers*perWriter; i++ {
		if _, _, err := client.ReadMessage(); err != nil {
			t.Fatalf("failed to read broadcast %d: %v", i, err)
		}
	}
}

// The initial frame a handler sends through its subscriber must also
// serialize against broadcasts on the same connection.
func TestSubscriber_SendSerializesWithBroadcast(t *testing.T) {
	b := NewBroadcaster(nil)

	subReady := make(chan *Subscriber, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		subReady <- b.Subscribe("org-1", conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	sub := <-subReady
	event := BoardEvent{Type: EventBoardUpdated, Scope: "org-1", Board: map[string][]string{"now": {"q1"}}}

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := sub.Send(event); err != nil {
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			b.BroadcastBoard("org-1", event.Board)
		}
	}()
	wg.Wait()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2*rounds; i++ {
		if _, _, err := client.ReadMessage(); err != nil {
			t.Fatalf("failed to read frame %d: %v", i, err)
		}
	}
}

func TestBroadcaster_NoSubscribersIsNoop(t *testing.T) {
	b := NewBroadcaster(nil)
	// Must not panic
	b.BroadcastBoard("empty-scope", map[string][]string{"now": {"q1"}})
}
