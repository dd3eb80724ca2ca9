//go:build linux

package rawgadget

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
	"golang.org/x/sys/unix"

	"github.com/behrlich/me56ps2-gadget/internal/logging"
)

// Device is the real /dev/raw-gadget transport, grounded on
// original_source/usb_raw_gadget.cpp's ioctl sequence and the
// Syscall-against-a-device-node convention used throughout
// Daedaluz-goserial's port_linux.go.
type Device struct {
	fd int

	ep0Log *logging.Logger
	epNLog *logging.Logger
}

// Open opens the raw-gadget device node (normally /dev/raw-gadget). log
// is used only to dump ep0/epN traffic as hex+ASCII when its verbosity
// is 3 or higher (original_source/usb_raw_gadget.cpp's debug_level>=3
// ep0_read/ep0_write/ep_read/ep_write dumps); pass nil to use the
// package default.
func Open(path string, log *logging.Logger) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open(%s): %w", path, err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Device{fd: fd, ep0Log: log.Named("ep0: "), epNLog: log.Named("epN: ")}, nil
}

func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Device) Init(speed Speed, driverName, deviceName string) error {
	var arg rawInit
	if len(driverName) >= driverNameMax || len(deviceName) >= deviceNameMax {
		return fmt.Errorf("rawgadget: driver/device name too long")
	}
	copy(arg.DriverName[:], driverName)
	copy(arg.DeviceName[:], deviceName)
	arg.Speed = uint8(speed)

	return ioctl.Ioctl(uintptr(d.fd), ioctlInit, uintptr(unsafe.Pointer(&arg)))
}

func (d *Device) Run() error {
	return ioctl.Ioctl(uintptr(d.fd), ioctlRun, 0)
}

func (d *Device) EventFetch() (Event, error) {
	buf := make([]byte, int(unsafe.Sizeof(rawEventHeader{}))+eventDataMax)
	binary.LittleEndian.PutUint32(buf[4:], eventDataMax)

	if err := ioctl.Ioctl(uintptr(d.fd), ioctlEventFetch, uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return Event{}, err
	}

	typ := EventType(binary.LittleEndian.Uint32(buf[0:4]))
	length := binary.LittleEndian.Uint32(buf[4:8])
	if length > eventDataMax {
		length = eventDataMax
	}
	data := make([]byte, length)
	copy(data, buf[8:8+length])

	return Event{Type: typ, Data: data}, nil
}

func (d *Device) Ep0Write(data []byte) (int, error) {
	n, err := d.epIO(ioctlEp0Write, 0, data, nil)
	if err == nil && d.ep0Log.Verbosity() >= 3 {
		d.ep0Log.DumpHexASCII("ep0_write", data[:n])
	}
	return n, err
}

func (d *Device) Ep0Read(out []byte) (int, error) {
	n, err := d.epIO(ioctlEp0Read, 0, nil, out)
	if err == nil && d.ep0Log.Verbosity() >= 3 {
		d.ep0Log.DumpHexASCII("ep0_read", out[:n])
	}
	return n, err
}

func (d *Device) Ep0Stall() error {
	return ioctl.Ioctl(uintptr(d.fd), ioctlEp0Stall, 0)
}

// EpEnable issues USB_RAW_IOCTL_EP_ENABLE and returns the kernel's ep
// handle. goioctl.Ioctl (used for every other ioctl in this file) only
// reports success/failure and discards the raw syscall return value,
// but EP_ENABLE is the one raw-gadget call that hands back its result
// through that return value rather than through the argument buffer, so
// this one call goes straight to syscall.Syscall instead — the same
// bypass-the-wrapper-for-the-return-value move internal/uring/minimal.go
// uses when it needs a raw ioctl/syscall result.
func (d *Device) EpEnable(desc []byte) (int, error) {
	if len(desc) == 0 {
		return 0, fmt.Errorf("rawgadget: empty endpoint descriptor")
	}
	r1, _, errno := syscall.Syscall(unix.SYS_IOCTL, uintptr(d.fd), ioctlEpEnable, uintptr(unsafe.Pointer(&desc[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

func (d *Device) EpWrite(ep uint16, data []byte) (int, error) {
	n, err := d.epIO(ioctlEpWrite, ep, data, nil)
	if err == nil && d.epNLog.Verbosity() >= 3 {
		d.epNLog.DumpHexASCII("ep_write", data[:n])
	}
	return n, err
}

func (d *Device) EpRead(ep uint16, out []byte) (int, error) {
	n, err := d.epIO(ioctlEpRead, ep, nil, out)
	if err == nil && d.epNLog.Verbosity() >= 3 {
		d.epNLog.DumpHexASCII("ep_read", out[:n])
	}
	return n, err
}

func (d *Device) VbusDraw(maxPowerMa uint32) error {
	return ioctl.Ioctl(uintptr(d.fd), ioctlVbusDraw, uintptr(maxPowerMa))
}

func (d *Device) Configure() error {
	return ioctl.Ioctl(uintptr(d.fd), ioctlConfigure, 0)
}

// epIO builds the usb_raw_ep_io header+payload buffer for a write, or
// a header+capacity buffer for a read, and issues the ioctl. Exactly
// one of in/out is non-nil.
func (d *Device) epIO(req uintptr, ep uint16, in []byte, out []byte) (int, error) {
	hdrLen := int(unsafe.Sizeof(rawEPIOHeader{}))

	var length int
	if in != nil {
		length = len(in)
	} else {
		length = len(out)
	}

	buf := make([]byte, hdrLen+length)
	binary.LittleEndian.PutUint16(buf[0:2], ep)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(length))
	if in != nil {
		copy(buf[hdrLen:], in)
	}

	if err := ioctl.Ioctl(uintptr(d.fd), req, uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return 0, err
	}

	n := int(binary.LittleEndian.Uint16(buf[4:6]))
	if out != nil && n > 0 {
		copy(out, buf[hdrLen:hdrLen+n])
	}
	return n, nil
}
