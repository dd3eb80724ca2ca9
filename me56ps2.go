// Package me56ps2 wires the raw-gadget transport, the USB enumeration
// responder, the modem state machine, the bulk-IN pacer and the TCP
// bridge into one running modem emulator (spec.md §4, §5).
package me56ps2

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/behrlich/me56ps2-gadget/internal/bridge"
	"github.com/behrlich/me56ps2-gadget/internal/control"
	"github.com/behrlich/me56ps2-gadget/internal/descriptors"
	"github.com/behrlich/me56ps2-gadget/internal/enum"
	"github.com/behrlich/me56ps2-gadget/internal/errs"
	"github.com/behrlich/me56ps2-gadget/internal/logging"
	"github.com/behrlich/me56ps2-gadget/internal/modem"
	"github.com/behrlich/me56ps2-gadget/internal/pacer"
	"github.com/behrlich/me56ps2-gadget/internal/rawgadget"
	"github.com/behrlich/me56ps2-gadget/internal/ring"
)

// DataModeExit selects what happens to the connection flag on a TCP
// peer disconnect while the modem is on-line. See SPEC_FULL.md §4 for the
// open-question decision this configures.
type DataModeExit int

const (
	// DataModeExitNone leaves data mode terminal once entered, matching
	// the original: a dropped TCP peer does not return the modem to
	// command mode.
	DataModeExitNone DataModeExit = iota
	// DataModeExitOnEOF clears the connection flag and enqueues
	// "NO CARRIER\r\n" when the TCP peer disconnects.
	DataModeExitOnEOF
)

const ringBufferCapacity = 512 * 1024

// Config configures one run of the modem emulator.
type Config struct {
	// Server selects the TCP bridge role: true listens on Address:Port,
	// false dials it on ATD.
	Server  bool
	Address string
	Port    uint16

	// DriverName/DeviceName name the UDC the gadget binds to (spec.md §6).
	DriverName string
	DeviceName string

	// GadgetPath is the raw-gadget device node. Defaults to
	// /dev/raw-gadget.
	GadgetPath string

	DataModeExit DataModeExit

	Logger *logging.Logger
}

func (c Config) withDefaults() Config {
	if c.GadgetPath == "" {
		c.GadgetPath = "/dev/raw-gadget"
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// Emulator owns the shared state components B-G are wired around: the
// ring buffer, the connection flag, and the descriptor set. It spawns
// the bulk endpoint activities exactly once, on the first successful
// SET_CONFIGURATION.
type Emulator struct {
	cfg Config
	log *logging.Logger

	usb  rawgadget.Gadget
	sock *bridge.Socket

	tx        *ring.Buffer
	connected atomic.Bool

	cfgBlock descriptors.ConfigBlock

	activitiesOnce sync.Once
	closeOnce      sync.Once
	closeErr       error
	stop           chan struct{}
	activities     sync.WaitGroup
}

// New builds an Emulator around usb, the raw-gadget transport to
// drive. Tests pass an *rawgadget.Fake; cmd/me56ps2 passes a real
// *rawgadget.Device.
func New(cfg Config, usb rawgadget.Gadget) (*Emulator, error) {
	cfg = cfg.withDefaults()

	sock, err := bridge.New(cfg.Logger, cfg.Server, cfg.Address, cfg.Port)
	if err != nil {
		return nil, err
	}

	e := &Emulator{
		cfg:      cfg,
		log:      cfg.Logger,
		usb:      usb,
		sock:     sock,
		tx:       ring.New(ringBufferCapacity),
		cfgBlock: descriptors.NewConfigBlock(),
		stop:     make(chan struct{}),
	}

	sock.SetRingCallback(e.onRing)
	sock.SetRecvCallback(e.onRecv)
	sock.SetDisconnectCallback(e.onDisconnect)

	return e, nil
}

// onRing fires each time a TCP peer attaches: it enqueues the
// unsolicited RING line, matching the original's ring_callback.
func (e *Emulator) onRing() {
	e.tx.Enqueue([]byte("RING\r\n"))
	e.tx.NotifyOne()
	e.log.Printf("tcp peer connected")
}

// onRecv fires once per chunk received from the connected TCP peer.
// Bytes arriving while off-line are discarded, matching the original's
// recv_callback gating on the on-line flag.
func (e *Emulator) onRecv(data []byte) {
	if !e.connected.Load() {
		return
	}
	n := e.tx.Enqueue(data)
	if n < len(data) {
		e.log.Printf("Transmit buffer is full! (dropped %d bytes)", len(data)-n)
	}
	e.tx.NotifyOne()
}

// onDisconnect fires when the TCP bridge tears down the peer
// connection, including on a bare peer EOF: onRecv only ever runs for
// received bytes, so a dropped connection is only observable here.
func (e *Emulator) onDisconnect() {
	if e.cfg.DataModeExit != DataModeExitOnEOF {
		return
	}
	if !e.connected.CompareAndSwap(true, false) {
		return
	}
	e.tx.Enqueue([]byte("NO CARRIER\r\n"))
	e.tx.NotifyOne()
	e.log.Printf("tcp peer disconnected")
}

// Run initializes the gadget, starts the TCP bridge (if server mode)
// and drives the control-event loop until ctx is cancelled or a fatal
// device error occurs, matching the original's main() wiring order:
// usb init, usb run, socket listen, then the control loop.
func (e *Emulator) Run(ctx context.Context) error {
	if err := e.usb.Init(rawgadget.SpeedHigh, e.cfg.DriverName, e.cfg.DeviceName); err != nil {
		return errs.Device("Run: Init", err)
	}
	if err := e.usb.Run(); err != nil {
		return errs.Device("Run: Run", err)
	}

	if e.cfg.Server {
		if err := e.sock.Start(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		e.Close()
	}()

	for {
		select {
		case <-e.stop:
			return ctx.Err()
		default:
		}

		ev, err := e.usb.EventFetch()
		if err != nil {
			return errs.Device("Run: EventFetch", err)
		}
		e.handleEvent(ev)
	}
}

func (e *Emulator) handleEvent(ev rawgadget.Event) {
	switch ev.Type {
	case rawgadget.EventControl:
		e.handleControl(ev.Data)
	case rawgadget.EventDisconnect:
		e.log.Debug("usb disconnect event")
	}
}

func (e *Emulator) handleControl(data []byte) {
	if len(data) != 8 {
		e.usb.Ep0Stall()
		return
	}
	var raw [8]byte
	copy(raw[:], data)
	req := control.FromBytes(raw)

	resp := enum.Respond(req, e.cfgBlock)
	if resp.Stall {
		e.usb.Ep0Stall()
		return
	}

	if resp.Configure {
		e.startActivities()
	}

	// on-hook/off-hook is logging-only; it never changes emulator state.
	if e.log.Verbosity() >= 2 {
		switch resp.Hook {
		case enum.HookOffHook:
			e.log.Printf("off-hook")
		case enum.HookOnHook:
			e.log.Printf("on-hook")
		}
	}

	length := int(req.WLength)
	if length > len(resp.Data) {
		length = len(resp.Data)
	}

	if req.IsDeviceToHost() {
		if _, err := e.usb.Ep0Write(resp.Data[:length]); err != nil {
			e.log.Printf("ep0 write: %v", err)
		}
		return
	}

	// Always perform the ep0 status-stage read, even for wLength==0: it
	// is the zero-length handshake raw-gadget requires to complete the
	// OUT transfer (SET_CONFIGURATION, SET_INTERFACE, vendor requests).
	buf := make([]byte, req.WLength)
	if _, err := e.usb.Ep0Read(buf); err != nil {
		e.log.Printf("ep0 read: %v", err)
	}
}

// startActivities enables the bulk endpoints, draws VBUS, configures
// the gadget and spawns the pacer and bulk-OUT reader, exactly once.
func (e *Emulator) startActivities() {
	e.activitiesOnce.Do(func() {
		inHandle, err := e.usb.EpEnable(e.cfgBlock.EndpointIn.Bytes())
		if err != nil {
			e.log.Printf("ep_enable(bulk-in): %v", err)
		}
		outHandle, err := e.usb.EpEnable(e.cfgBlock.EndpointOut.Bytes())
		if err != nil {
			e.log.Printf("ep_enable(bulk-out): %v", err)
		}

		// ep_enable hands back the opaque handle subsequent EpWrite/
		// EpRead calls must use; it is not derived from the endpoint
		// address we asked for.
		inEp := uint16(inHandle)
		outEp := uint16(outHandle)

		p := pacer.New(e.log, e.tx, e.usb, inEp, &e.connected)
		e.activities.Add(1)
		go func() {
			defer e.activities.Done()
			p.Run(e.stop)
		}()

		mm := modem.New(e.log, e.tx, e.sock, &e.connected)
		e.activities.Add(1)
		go func() {
			defer e.activities.Done()
			e.bulkOutLoop(mm, outEp)
		}()

		if err := e.usb.VbusDraw(uint32(e.cfgBlock.Config.MaxPower)); err != nil {
			e.log.Printf("vbus_draw: %v", err)
		}
		if err := e.usb.Configure(); err != nil {
			e.log.Printf("configure: %v", err)
		}
		e.log.Printf("USB configured")
	})
}

func (e *Emulator) bulkOutLoop(mm *modem.Machine, ep uint16) {
	buf := make([]byte, 64)
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		n, err := e.usb.EpRead(ep, buf)
		if err != nil {
			e.log.Printf("ep_read: %v", err)
			return
		}
		if n == 0 {
			continue
		}
		mm.HandleBulkOut(buf[:n])
	}
}

// Close stops the control loop and background activities and tears
// down the TCP bridge. Safe to call more than once.
func (e *Emulator) Close() error {
	e.closeOnce.Do(func() {
		close(e.stop)
		e.activities.Wait()
		e.closeErr = e.sock.Close()
	})
	return e.closeErr
}
