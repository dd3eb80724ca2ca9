package rawgadget

import (
	"errors"
	"sync"
)

// ErrStalled is returned by Fake's Ep0Read/Ep0Write when the endpoint
// is in the stalled state a test put it in.
var ErrStalled = errors.New("rawgadget: endpoint stalled")

// Fake is an in-memory Gadget for tests that have no kernel
// raw-gadget driver to run against, built the same way the teacher's
// testing.go stands in for a real ublk kernel backend: an interface
// implementation driven entirely by test-supplied state.
type Fake struct {
	mu sync.Mutex

	Initialized bool
	Running     bool
	Configured  bool
	VbusMa      uint32

	Speed      Speed
	DriverName string
	DeviceName string

	EnabledEndpoints [][]byte

	// Events is consumed in order by EventFetch.
	Events []Event

	// Ep0Out / per-endpoint Out buffers are consumed by reads; In
	// buffers accumulate what the device under test writes.
	Ep0Out [][]byte
	Ep0In  [][]byte

	EpOut map[uint16][][]byte
	EpIn  map[uint16][][]byte

	stalled bool
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{
		EpOut: make(map[uint16][][]byte),
		EpIn:  make(map[uint16][][]byte),
	}
}

func (f *Fake) Init(speed Speed, driverName, deviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Initialized = true
	f.Speed = speed
	f.DriverName = driverName
	f.DeviceName = deviceName
	return nil
}

func (f *Fake) Run() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Running = true
	return nil
}

func (f *Fake) Close() error { return nil }

// PushEvent queues an event for the next EventFetch call.
func (f *Fake) PushEvent(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, e)
}

func (f *Fake) EventFetch() (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Events) == 0 {
		return Event{}, errors.New("rawgadget: fake has no queued events")
	}
	e := f.Events[0]
	f.Events = f.Events[1:]
	return e, nil
}

func (f *Fake) Ep0Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stalled {
		return 0, ErrStalled
	}
	cp := append([]byte(nil), data...)
	f.Ep0In = append(f.Ep0In, cp)
	return len(data), nil
}

func (f *Fake) Ep0Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stalled {
		return 0, ErrStalled
	}
	if len(f.Ep0Out) == 0 {
		return 0, nil
	}
	chunk := f.Ep0Out[0]
	f.Ep0Out = f.Ep0Out[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (f *Fake) Ep0Stall() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stalled = true
	return nil
}

// EpEnable returns the descriptor's bEndpointAddress as the ep handle
// (a real /dev/raw-gadget device hands back its own kernel-assigned
// handle instead), so callers that thread the returned handle into
// EpWrite/EpRead key into EpIn/EpOut by endpoint address.
func (f *Fake) EpEnable(desc []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(desc) < 3 {
		return 0, errors.New("rawgadget: endpoint descriptor too short")
	}
	f.EnabledEndpoints = append(f.EnabledEndpoints, append([]byte(nil), desc...))
	return int(desc[2]), nil
}

// PushEpOut queues a chunk to be returned by the next EpRead(ep, ...).
func (f *Fake) PushEpOut(ep uint16, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EpOut[ep] = append(f.EpOut[ep], append([]byte(nil), data...))
}

func (f *Fake) EpWrite(ep uint16, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.EpIn[ep] = append(f.EpIn[ep], cp)
	return len(data), nil
}

func (f *Fake) EpRead(ep uint16, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.EpOut[ep]
	if len(queue) == 0 {
		return 0, nil
	}
	chunk := queue[0]
	f.EpOut[ep] = queue[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (f *Fake) VbusDraw(maxPowerMa uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VbusMa = maxPowerMa
	return nil
}

// PeekEpIn returns a snapshot of the frames written so far to ep's IN
// queue, for tests observing what the device under test wrote.
func (f *Fake) PeekEpIn(ep uint16) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.EpIn[ep]))
	copy(out, f.EpIn[ep])
	return out
}

func (f *Fake) Configure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Configured = true
	return nil
}

var _ Gadget = (*Fake)(nil)
