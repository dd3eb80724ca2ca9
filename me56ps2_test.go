package me56ps2

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/me56ps2-gadget/internal/descriptors"
	"github.com/behrlich/me56ps2-gadget/internal/logging"
	"github.com/behrlich/me56ps2-gadget/internal/rawgadget"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelError})
}

// setConfigurationRequest builds the 8-byte Setup packet for a
// standard, host-to-device SET_CONFIGURATION(1) request.
func setConfigurationRequest() []byte {
	return []byte{0x00, 9, 1, 0, 0, 0, 0, 0}
}

func bulkOutFrame(payload string) []byte {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(len(payload) << 2)
	copy(frame[1:], payload)
	return frame
}

func TestSetConfigurationStartsActivitiesExactlyOnce(t *testing.T) {
	usb := rawgadget.NewFake()
	usb.PushEvent(rawgadget.Event{Type: rawgadget.EventConnect})
	usb.PushEvent(rawgadget.Event{Type: rawgadget.EventControl, Data: setConfigurationRequest()})
	usb.PushEvent(rawgadget.Event{Type: rawgadget.EventControl, Data: setConfigurationRequest()})

	e, err := New(Config{Address: "127.0.0.1", Port: 18123, Logger: testLogger()}, usb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run drains the fake's queued events and then errors out once it
	// runs dry; that's expected here since Run's event loop has no more
	// work to pull.
	_ = e.Run(ctx)

	if !usb.Configured {
		t.Fatal("expected Configure() to have been called")
	}
	if usb.VbusMa != descriptors.ConfigMaxPower {
		t.Fatalf("expected vbus draw %d, got %d", descriptors.ConfigMaxPower, usb.VbusMa)
	}
	if len(usb.EnabledEndpoints) != 2 {
		t.Fatalf("expected both bulk endpoints enabled exactly once, got %d", len(usb.EnabledEndpoints))
	}
}

func TestUnknownControlRequestStalls(t *testing.T) {
	usb := rawgadget.NewFake()
	// bmRequestType 0x60 is TypeReserved, bRequest 0x55 matches nothing.
	usb.PushEvent(rawgadget.Event{Type: rawgadget.EventControl, Data: []byte{0x60, 0x55, 0, 0, 0, 0, 0, 0}})

	e, err := New(Config{Address: "127.0.0.1", Port: 18124, Logger: testLogger()}, usb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	_ = e.Run(context.Background())

	if len(usb.Ep0In) != 0 {
		t.Fatalf("expected no ep0 reply to an unrecognised request, got %v", usb.Ep0In)
	}
}

func TestBulkOutATACommandBringsModemOnlineAndPacerReflectsIt(t *testing.T) {
	usb := rawgadget.NewFake()
	usb.PushEvent(rawgadget.Event{Type: rawgadget.EventControl, Data: setConfigurationRequest()})

	e, err := New(Config{Address: "127.0.0.1", Port: 18125, Logger: testLogger()}, usb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = e.Run(ctx)

	outEp := uint16(descriptors.EndpointAddrBulk)
	usb.PushEpOut(outEp, bulkOutFrame("ATA\r"))

	deadline := time.Now().Add(2 * time.Second)
	for !e.connected.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !e.connected.Load() {
		t.Fatal("expected ATA to bring the modem on-line")
	}

	inEp := uint16(descriptors.DirIn | descriptors.EndpointAddrBulk)
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames := usb.PeekEpIn(inEp)
		if len(frames) > 0 && frames[len(frames)-1][0]&0x80 != 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a pacer frame with the connected status bit set")
}
