//go:build linux

package rawgadget

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// ioctl request codes for /dev/raw-gadget, built the same way
// goserial builds its TCGETS2/TIOCGPTN codes: magic + ordinal + the
// argument struct size, left to IOR/IOW/IOWR to pack.
const rawGadgetMagic = 'U'

const (
	driverNameMax = 32
	deviceNameMax = 32
)

type rawInit struct {
	DriverName [driverNameMax]byte
	DeviceName [deviceNameMax]byte
	Speed      uint8
}

// rawEventHeader is usb_raw_event without its flexible data[] tail; the
// ioctl buffer is header bytes followed by up to eventDataMax payload
// bytes, sized generously for the largest Setup-carrying event.
type rawEventHeader struct {
	Type   uint32
	Length uint32
}

const eventDataMax = 64

// rawEPIOHeader is usb_raw_ep_io without its flexible data[] tail.
type rawEPIOHeader struct {
	Ep     uint16
	Flags  uint16
	Length uint16
}

var (
	ioctlInit       = ioctl.IOW(rawGadgetMagic, 0, unsafe.Sizeof(rawInit{}))
	ioctlRun        = ioctl.IO(rawGadgetMagic, 1)
	ioctlEventFetch = ioctl.IOR(rawGadgetMagic, 2, unsafe.Sizeof(rawEventHeader{})+eventDataMax)
	ioctlEp0Write   = ioctl.IOW(rawGadgetMagic, 3, unsafe.Sizeof(rawEPIOHeader{}))
	ioctlEp0Read    = ioctl.IOWR(rawGadgetMagic, 4, unsafe.Sizeof(rawEPIOHeader{}))
	ioctlEpEnable   = ioctl.IOW(rawGadgetMagic, 5, uintptr(9)) // sizeof(struct usb_endpoint_descriptor)
	ioctlEpWrite    = ioctl.IOW(rawGadgetMagic, 7, unsafe.Sizeof(rawEPIOHeader{}))
	ioctlEpRead     = ioctl.IOWR(rawGadgetMagic, 8, unsafe.Sizeof(rawEPIOHeader{}))
	ioctlConfigure  = ioctl.IO(rawGadgetMagic, 9)
	ioctlVbusDraw   = ioctl.IOW(rawGadgetMagic, 10, unsafe.Sizeof(uint32(0)))
	ioctlEp0Stall   = ioctl.IO(rawGadgetMagic, 12)
)
