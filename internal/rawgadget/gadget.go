// Package rawgadget is the thin ioctl operation surface over
// /dev/raw-gadget (component B). It exposes the kernel's raw-gadget
// operations one-to-one and nothing more; classification of control
// events and descriptor content live in internal/control and
// internal/descriptors.
package rawgadget

// Speed mirrors enum usb_device_speed from linux/usb/ch9.h.
type Speed uint8

const (
	SpeedUnknown Speed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
	SpeedWireless
	SpeedSuper
	SpeedSuperPlus
)

// EventType mirrors enum usb_raw_event_type from
// linux/usb/raw_gadget.h.
type EventType uint32

const (
	EventInvalid    EventType = 0
	EventConnect    EventType = 1
	EventControl    EventType = 2
	EventSuspend    EventType = 3
	EventResume     EventType = 4
	EventReset      EventType = 5
	EventDisconnect EventType = 6
)

// Event is a decoded USB_RAW_IOCTL_EVENT_FETCH result. Data holds the
// 8-byte Setup packet for EventControl and is empty otherwise.
type Event struct {
	Type EventType
	Data []byte
}

// IO flags for Ep0Write/EpWrite (USB_RAW_IO_FLAGS_ZERO: terminate the
// transfer with a zero-length packet if the payload is a multiple of
// the endpoint's max packet size).
const IOFlagsZero = 0x1

// Gadget is the operation-level surface a raw-gadget transport exposes;
// spec.md leaves its numeric ioctl encoding out of scope. Device is the
// real /dev/raw-gadget implementation; Fake is an in-memory stand-in
// for tests that don't have a kernel gadget driver loaded.
type Gadget interface {
	Init(speed Speed, driverName, deviceName string) error
	Run() error
	Close() error

	EventFetch() (Event, error)

	Ep0Write(data []byte) (int, error)
	Ep0Read(buf []byte) (int, error)
	Ep0Stall() error

	// EpEnable enables the endpoint described by desc (raw wire-format
	// endpoint descriptor bytes) and returns the kernel-assigned ep
	// handle, an opaque id threaded into subsequent EpWrite/EpRead calls.
	EpEnable(desc []byte) (int, error)
	EpWrite(ep uint16, data []byte) (int, error)
	EpRead(ep uint16, buf []byte) (int, error)

	VbusDraw(maxPowerMa uint32) error
	Configure() error
}
