// Package modem is the modem state machine (component F): it
// consumes bulk-OUT payloads, interprets AT commands while
// off-line, and forwards bytes to the TCP bridge once on-line.
package modem

import (
	"bytes"
	"strings"
	"sync/atomic"

	"github.com/behrlich/me56ps2-gadget/internal/logging"
	"github.com/behrlich/me56ps2-gadget/internal/ring"
)

// Dialer is the TCP bridge surface the modem state machine drives:
// on-demand dial from ATD, and forwarding bytes once on-line.
type Dialer interface {
	Connect() bool
	Send(data []byte)
}

const (
	replyOK      = "OK\r\n"
	replyConnect = "CONNECT 57600 V42\r\n"
	replyBusy    = "BUSY\r\n"
)

// Machine is the command-mode/data-mode state machine for one bulk
// endpoint pair. It is not safe for concurrent use: exactly one
// activity (the bulk-OUT reader) drives it.
type Machine struct {
	log       *logging.Logger
	tx        *ring.Buffer
	dialer    Dialer
	connected *atomic.Bool

	echo  bool
	accum []byte
}

// New builds a modem state machine. tx is the shared ring buffer AT
// replies and RING/CONNECT lines are enqueued to; connected is the
// shared connection flag this machine transitions on ATA/ATD.
func New(log *logging.Logger, tx *ring.Buffer, dialer Dialer, connected *atomic.Bool) *Machine {
	return &Machine{
		log:       log.Named("epN: "),
		tx:        tx,
		dialer:    dialer,
		connected: connected,
	}
}

// HandleBulkOut processes one bulk-OUT transfer's raw payload: byte 0
// is payload_length<<2, bytes 1..n are the payload (spec.md §4.6).
func (m *Machine) HandleBulkOut(frame []byte) {
	if len(frame) == 0 {
		return
	}

	declared := int(frame[0]) >> 2
	actual := len(frame) - 1
	n := declared
	if declared != actual {
		m.log.Printf("Payload length mismatch! (payload length in header: %d, received payload: %d)", declared, actual)
		if actual < n {
			n = actual
		}
	}
	if n < 0 {
		n = 0
	}
	if n > actual {
		n = actual
	}
	m.accum = append(m.accum, frame[1:1+n]...)

	if !m.connected.Load() {
		m.commandLoop()
	}

	if m.connected.Load() && len(m.accum) > 0 {
		m.dialer.Send(m.accum)
		m.accum = m.accum[:0]
	}
}

// commandLoop drains complete, non-empty command lines from the
// accumulator while off-line, following the original's exact
// exit-on-missing-delimiter and exit-on-empty-line behavior: both
// stop the pass rather than skipping to the next line.
func (m *Machine) commandLoop() {
	for !m.connected.Load() {
		idx := bytes.IndexByte(m.accum, '\r')
		if idx < 0 {
			return
		}
		line := string(m.accum[:idx])
		m.accum = m.accum[idx+1:]
		if line == "" {
			return
		}

		m.log.Printf("AT command: %s", line)
		if m.echo {
			m.enqueue(line + "\r\n")
		}

		reply := replyOK
		enterOnline := false

		switch {
		case line == "AT&F":
			m.echo = true
		case line == "ATE0":
			m.echo = false
		case line == "ATA":
			reply = replyConnect
			enterOnline = true
		case strings.HasPrefix(line, "ATD"):
			if m.dialer.Connect() {
				reply = replyConnect
				enterOnline = true
			} else {
				reply = replyBusy
			}
		}

		m.enqueue(reply)

		if enterOnline {
			m.log.Printf("Enter on-line mode.")
			m.connected.Store(true)
		}
	}
}

func (m *Machine) enqueue(s string) {
	m.tx.Enqueue([]byte(s))
	m.tx.NotifyOne()
}
