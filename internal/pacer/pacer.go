// Package pacer is the bulk-IN pacer (component G): a fixed 40ms
// steady-clock cadence that drains the ring buffer into framed
// bulk-IN packets, with a status byte reflecting the connection flag.
package pacer

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/me56ps2-gadget/internal/logging"
	"github.com/behrlich/me56ps2-gadget/internal/ring"
)

const (
	tickInterval = 40 * time.Millisecond

	// maxPacketSizeBulk is MAX_PACKET_SIZE_BULK (spec.md §6); the
	// 2-byte header leaves 62 bytes of payload per tick.
	maxPacketSizeBulk = 64
	headerLen         = 2
	payloadMax        = maxPacketSizeBulk - headerLen

	statusBase      = 0x31
	statusConnected = 0x80
	fixedByte1      = 0x60
)

// Writer is the bulk-IN endpoint write operation the pacer drives.
type Writer interface {
	EpWrite(ep uint16, data []byte) (int, error)
}

// Pacer drains tx at a fixed cadence into framed bulk-IN writes on ep.
type Pacer struct {
	log       *logging.Logger
	tx        *ring.Buffer
	writer    Writer
	ep        uint16
	connected *atomic.Bool
}

// New builds a pacer writing to the given endpoint. connected is the
// shared connection flag observed for the status byte's top bit.
func New(log *logging.Logger, tx *ring.Buffer, writer Writer, ep uint16, connected *atomic.Bool) *Pacer {
	return &Pacer{
		log:       log.Named("epN: "),
		tx:        tx,
		writer:    writer,
		ep:        ep,
		connected: connected,
	}
}

// Run drives the pacer loop until stop is closed. It never returns an
// error; individual write failures are logged and the loop continues.
func (p *Pacer) Run(stop <-chan struct{}) {
	deadline := time.Now()

	for {
		select {
		case <-stop:
			return
		default:
		}

		now := time.Now()
		for !deadline.After(now) {
			deadline = deadline.Add(tickInterval)
		}
		p.tx.Wait(deadline)

		p.tick()
	}
}

func (p *Pacer) tick() {
	packet := make([]byte, maxPacketSizeBulk)
	packet[0] = statusBase
	packet[1] = fixedByte1

	n := p.tx.Dequeue(packet[headerLen:])
	if n > payloadMax {
		n = payloadMax
	}

	if p.connected.Load() {
		packet[0] |= statusConnected
	}

	if _, err := p.writer.EpWrite(p.ep, packet[:headerLen+n]); err != nil {
		p.log.Printf("write: %v", err)
	}
}
