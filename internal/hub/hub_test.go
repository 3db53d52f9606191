package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type namedEvent struct {
	Type string `json:"type"`
}

func (e namedEvent) EventName() string { return e.Type }

func connect(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	br := bufio.NewReader(resp.Body)
	line, err := br.ReadString('\n')
	if err != nil || line != ": connected\n" {
		t.Fatalf("first line %q, %v", line, err)
	}
	br.ReadString('\n')
	return br, func() { resp.Body.Close() }
}

func readEvent(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)
	srv := httptest.NewServer(h)
	defer srv.Close()

	br, closeConn := connect(t, srv.URL)
	defer closeConn()

	if n := h.ClientCount(); n != 1 {
		t.Fatalf("ClientCount() = %d, want 1", n)
	}

	h.Broadcast(namedEvent{Type: "detector_placed"})
	got := readEvent(t, br)
	want := "event: detector_placed\ndata: {\"type\":\"detector_placed\"}\n"
	if got != want {
		t.Errorf("event = %q, want %q", got, want)
	}

	h.Broadcast(map[string]int{"n": 1})
	if got := readEvent(t, br); got != "data: {\"n\":1}\n" {
		t.Errorf("unnamed event = %q", got)
	}
}

func TestHubForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)
	srv := httptest.NewServer(h)
	defer srv.Close()

	br, closeConn := connect(t, srv.URL)
	defer closeConn()

	events := make(chan namedEvent, 1)
	done := make(chan struct{})
	go func() {
		Forward(ctx, h, events)
		close(done)
	}()

	events <- namedEvent{Type: "scene_loaded"}
	if got := readEvent(t, br); !strings.HasPrefix(got, "event: scene_loaded\n") {
		t.Errorf("event = %q", got)
	}

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after channel close")
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := New(nil)
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	srv := httptest.NewServer(h)
	defer srv.Close()

	br, closeConn := connect(t, srv.URL)
	defer closeConn()

	cancel()
	<-stopped

	if _, err := br.ReadString('\n'); err == nil {
		t.Error("expected stream to end after hub stopped")
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after stop", n)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after stop = %d", rec.Code)
	}
}
