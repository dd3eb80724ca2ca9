// Package control classifies a raw USB control request into the fields
// the enumeration responder needs (spec.md §4.3, component C). It holds
// no state; every function here is a pure derivation from an 8-byte
// Setup packet, named and laid out the way
// usb.SetupData is in the tamago USB device stack.
package control

// RequestType identifies the recipient/type category of a control
// request, derived from bmRequestType & TYPE_MASK.
type RequestType uint8

const (
	TypeStandard RequestType = 0x00
	TypeClass    RequestType = 0x20
	TypeVendor   RequestType = 0x40
	TypeReserved RequestType = 0x60
)

const (
	typeMask = 0x60
	dirIn    = 0x80
)

// Standard request codes (USB 2.0 spec, Table 9-4).
const (
	ReqGetDescriptor    = 6
	ReqSetConfiguration = 9
	ReqSetInterface     = 11
)

// Standard descriptor type codes (USB 2.0 spec, Table 9-5).
const (
	DescDevice = 1
	DescConfig = 2
	DescString = 3
)

// Request is the 8-byte control request (Setup packet) as delivered by
// the raw-gadget control event.
type Request struct {
	BmRequestType uint8
	BRequest      uint8
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

// Type returns the request-type field: bmRequestType & TYPE_MASK.
func (r Request) Type() RequestType {
	return RequestType(r.BmRequestType & typeMask)
}

// IsDeviceToHost reports whether the data stage, if any, flows from
// device to host (the USB_DIR_IN bit of bmRequestType).
func (r Request) IsDeviceToHost() bool {
	return r.BmRequestType&dirIn != 0
}

// DescriptorType returns wValue >> 8, meaningful only for
// (TypeStandard, ReqGetDescriptor) requests.
func (r Request) DescriptorType() uint8 {
	return uint8(r.WValue >> 8)
}

// DescriptorIndex returns wValue & 0xFF, the low byte used to index
// string descriptors.
func (r Request) DescriptorIndex() uint8 {
	return uint8(r.WValue & 0xFF)
}

// Is reports whether this request matches (reqType, bRequest).
func (r Request) Is(reqType RequestType, bRequest uint8) bool {
	return r.Type() == reqType && r.BRequest == bRequest
}

// FromBytes decodes the 8-byte little-endian control request as delivered
// by the kernel (bmRequestType, bRequest, wValue, wIndex, wLength).
func FromBytes(b [8]byte) Request {
	return Request{
		BmRequestType: b[0],
		BRequest:      b[1],
		WValue:        uint16(b[2]) | uint16(b[3])<<8,
		WIndex:        uint16(b[4]) | uint16(b[5])<<8,
		WLength:       uint16(b[6]) | uint16(b[7])<<8,
	}
}
