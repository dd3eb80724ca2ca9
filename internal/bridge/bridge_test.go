package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/behrlich/me56ps2-gadget/internal/logging"
)

func newTestLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelError})
}

func TestServerClientRoundTrip(t *testing.T) {
	const port = 19231

	server, err := New(newTestLogger(), true, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	defer server.Close()

	var mu sync.Mutex
	var received []byte
	recvCh := make(chan struct{}, 1)
	server.SetRecvCallback(func(data []byte) {
		mu.Lock()
		received = append(received, data...)
		mu.Unlock()
		select {
		case recvCh <- struct{}{}:
		default:
		}
	})

	ringCh := make(chan struct{}, 1)
	server.SetRingCallback(func() {
		select {
		case ringCh <- struct{}{}:
		default:
		}
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := New(newTestLogger(), false, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	defer client.Close()

	if !client.Connect() {
		t.Fatal("expected client Connect to succeed")
	}

	select {
	case <-ringCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server ring callback never fired")
	}

	client.Send([]byte("ATD5551212\r"))

	select {
	case <-recvCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server recv callback never fired")
	}

	mu.Lock()
	got := string(received)
	mu.Unlock()
	if got != "ATD5551212\r" {
		t.Fatalf("expected ATD5551212\\r, got %q", got)
	}
}

func TestSecondPeerIsClosed(t *testing.T) {
	const port = 19232

	server, err := New(newTestLogger(), true, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	defer server.Close()
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, err := New(newTestLogger(), false, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(first): %v", err)
	}
	defer first.Close()
	if !first.Connect() {
		t.Fatal("expected first client to connect")
	}

	time.Sleep(50 * time.Millisecond)

	second, err := New(newTestLogger(), false, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(second): %v", err)
	}
	defer second.Close()
	if !second.Connect() {
		t.Fatal("expected TCP-level dial of second peer to succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !second.IsConnected() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected server to close the second peer, but second never observed the disconnect")
}

func TestDisconnectCallbackFiresOnPeerEOF(t *testing.T) {
	const port = 19234

	server, err := New(newTestLogger(), true, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	defer server.Close()

	disconnectCh := make(chan struct{}, 1)
	server.SetDisconnectCallback(func() {
		select {
		case disconnectCh <- struct{}{}:
		default:
		}
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := New(newTestLogger(), false, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}

	if !client.Connect() {
		t.Fatal("expected client Connect to succeed")
	}
	time.Sleep(50 * time.Millisecond)
	client.Close()

	select {
	case <-disconnectCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server disconnect callback never fired on peer EOF")
	}
}

func TestNotConnectedSendIsNoop(t *testing.T) {
	client, err := New(newTestLogger(), false, "127.0.0.1", 19233)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	client.Send([]byte("hello"))
	if client.IsConnected() {
		t.Fatal("expected socket to report not connected")
	}
}
