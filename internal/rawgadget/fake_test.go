package rawgadget

import "testing"

func TestFakeInitRunConfigure(t *testing.T) {
	g := NewFake()
	if err := g.Init(SpeedHigh, "dummy_udc", "dummy_udc.0"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := g.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := g.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !g.Initialized || !g.Running || !g.Configured {
		t.Fatal("expected Init/Run/Configure to record state")
	}
	if g.Speed != SpeedHigh || g.DriverName != "dummy_udc" {
		t.Fatalf("unexpected recorded init params: %+v", g)
	}
}

func TestFakeEventFetchOrdering(t *testing.T) {
	g := NewFake()
	g.PushEvent(Event{Type: EventConnect})
	g.PushEvent(Event{Type: EventControl, Data: []byte{0x80, 6, 0, 1, 0, 0, 18, 0}})

	e1, err := g.EventFetch()
	if err != nil || e1.Type != EventConnect {
		t.Fatalf("expected EventConnect, got %+v err=%v", e1, err)
	}
	e2, err := g.EventFetch()
	if err != nil || e2.Type != EventControl || len(e2.Data) != 8 {
		t.Fatalf("expected EventControl with 8 bytes, got %+v err=%v", e2, err)
	}

	if _, err := g.EventFetch(); err == nil {
		t.Fatal("expected error on exhausted event queue")
	}
}

func TestFakeEp0StallRejectsIO(t *testing.T) {
	g := NewFake()
	if err := g.Ep0Stall(); err != nil {
		t.Fatalf("Ep0Stall: %v", err)
	}
	if _, err := g.Ep0Write([]byte("x")); err != ErrStalled {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
}

func TestFakeEpReadWriteRoundTrip(t *testing.T) {
	g := NewFake()
	g.PushEpOut(2, []byte("ATD5551212\r"))

	buf := make([]byte, 64)
	n, err := g.EpRead(2, buf)
	if err != nil || n != 11 {
		t.Fatalf("EpRead: n=%d err=%v", n, err)
	}
	if string(buf[:n]) != "ATD5551212\r" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}

	n, err = g.EpWrite(2, []byte("OK\r"))
	if err != nil || n != 3 {
		t.Fatalf("EpWrite: n=%d err=%v", n, err)
	}
	if string(g.EpIn[2][0]) != "OK\r" {
		t.Fatalf("expected recorded write OK\\r, got %q", g.EpIn[2][0])
	}
}

func TestFakeEpEnableRecordsDescriptor(t *testing.T) {
	g := NewFake()
	desc := []byte{7, 5, 0x82, 2, 64, 0, 0}
	handle, err := g.EpEnable(desc)
	if err != nil {
		t.Fatalf("EpEnable: %v", err)
	}
	if handle != 0x82 {
		t.Fatalf("expected handle 0x82 (bEndpointAddress), got %#x", handle)
	}
	if len(g.EnabledEndpoints) != 1 {
		t.Fatalf("expected 1 enabled endpoint, got %d", len(g.EnabledEndpoints))
	}
}

func TestFakeVbusDraw(t *testing.T) {
	g := NewFake()
	if err := g.VbusDraw(0x1E); err != nil {
		t.Fatalf("VbusDraw: %v", err)
	}
	if g.VbusMa != 0x1E {
		t.Fatalf("expected recorded VbusMa=0x1E, got %#x", g.VbusMa)
	}
}
