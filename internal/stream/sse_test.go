package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func sseTestConfig() TransportConfig {
	cfg := DefaultTransportConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.BufferSize = 16
	return cfg
}

// sseHandler writes the given frames and then holds the stream open until the
// client goes away.
func sseHandler(t *testing.T, frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
		<-r.Context().Done()
	}
}

func recvMessage(t *testing.T, tr Transport) TimestampedMessage {
	t.Helper()
	select {
	case msg := <-tr.Messages():
		return msg
	case err := <-tr.Errors():
		t.Fatalf("unexpected transport error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return TimestampedMessage{}
}

func recvError(t *testing.T, tr Transport) error {
	t.Helper()
	select {
	case err := <-tr.Errors():
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport error")
	}
	return nil
}

func TestSSETransport_ReceivesEvents(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t,
		": keepalive\n\n",
		"event: strategist-analysis\ndata: {\"type\":\"strategist-analysis\",\"section\":\"sentiment\"}\n\n",
		"data: {\"type\":\"heartbeat\",\n"+"data: \"seq\":7}\n\n",
	))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	first := recvMessage(t, tr)
	if want := `{"type":"strategist-analysis","section":"sentiment"}`; string(first.Data) != want {
		t.Errorf("first message = %q, want %q", first.Data, want)
	}
	if first.ReceivedAt.IsZero() {
		t.Error("message missing receive timestamp")
	}

	// Consecutive data lines of one event are joined with a newline
	second := recvMessage(t, tr)
	if want := "{\"type\":\"heartbeat\",\n\"seq\":7}"; string(second.Data) != want {
		t.Errorf("second message = %q, want %q", second.Data, want)
	}
}

func TestSSETransport_RejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrBadStatus) {
		t.Errorf("Connect = %v, want ErrBadStatus", err)
	}
}

func TestSSETransport_RejectsBadContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrBadContentType) {
		t.Errorf("Connect = %v, want ErrBadContentType", err)
	}
}

func TestSSETransport_ErrorOnServerDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"heartbeat\"}\n\n")
		// Handler returns, severing the stream
	}))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	recvMessage(t, tr)
	if err := recvError(t, tr); err == nil {
		t.Error("expected an error after server disconnect")
	}
}

func TestSSETransport_ResumesWithLastEventID(t *testing.T) {
	var mu sync.Mutex
	var seenIDs []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenIDs = append(seenIDs, r.Header.Get("Last-Event-ID"))
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "id: 42\ndata: {\"type\":\"heartbeat\"}\n\n")
	}))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	recvMessage(t, tr)
	recvError(t, tr) // handler returned, stream severed

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("resume Connect failed: %v", err)
	}
	defer tr.Close()
	recvMessage(t, tr)

	mu.Lock()
	defer mu.Unlock()
	if len(seenIDs) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(seenIDs))
	}
	if seenIDs[0] != "" {
		t.Errorf("first request Last-Event-ID = %q, want empty", seenIDs[0])
	}
	if seenIDs[1] != "42" {
		t.Errorf("resume request Last-Event-ID = %q, want %q", seenIDs[1], "42")
	}
}

func TestSSETransport_CloseIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// A locally closed stream must not surface a read error
	select {
	case err := <-tr.Errors():
		t.Errorf("unexpected error after local close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSETransport_ConnectAfterCloseFails(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t))
	defer srv.Close()

	tr := NewSSEDialer(sseTestConfig(), testLogger())(srv.URL)
	tr.Close()

	if err := tr.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded on a closed transport")
	}
}
