// Package descriptors holds the fixed, bit-exact USB descriptor set for
// the emulated Omron ME56PS2 modem gadget (spec.md §6). Every numeric
// field here is empirically reverse-engineered protocol magic and MUST be
// preserved verbatim.
package descriptors

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// USB descriptor type codes (USB 2.0 spec, Table 9-5).
const (
	TypeDevice    = 1
	TypeConfig    = 2
	TypeString    = 3
	TypeInterface = 4
	TypeEndpoint  = 5
)

// Standard request codes (USB 2.0 spec, Table 9-4). The control
// classifier and enumeration responder use internal/control's copies.
const (
	ReqGetDescriptor    = 6
	ReqSetConfiguration = 9
	ReqSetInterface     = 11
)

// bmRequestType direction and type bits.
const (
	DirIn      = 0x80
	TypeMask   = 0x60
	TypeStdVal = 0x00
	TypeVendor = 0x40
)

// Device-specific constants, reverse-engineered from the target ME56PS2
// hardware. Do not "clean up" — see spec.md §9.
const (
	BcdUSB       = 0x0110
	BcdDevice    = 0x0101
	VendorID     = 0x0590 // Omron Corp.
	ProductID    = 0x001A // ME56PS2
	MaxPacketEP0 = 64
	MaxPacketEP  = 64

	StringIDManufacturer = 1
	StringIDProduct      = 2
	StringIDSerial       = 3

	EndpointAddrBulk = 2
	ConfigMaxPower   = 0x1E // 60mA
)

// DeviceDescriptor implements the Standard Device Descriptor (USB 2.0
// spec, Table 9-8).
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BcdUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	BcdDevice         uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

// NewDeviceDescriptor returns the fixed me56ps2 device descriptor.
func NewDeviceDescriptor() DeviceDescriptor {
	return DeviceDescriptor{
		Length:            18,
		DescriptorType:    TypeDevice,
		BcdUSB:            BcdUSB,
		MaxPacketSize0:     MaxPacketEP0,
		VendorID:          VendorID,
		ProductID:         ProductID,
		BcdDevice:         BcdDevice,
		Manufacturer:      StringIDManufacturer,
		Product:           StringIDProduct,
		SerialNumber:      StringIDSerial,
		NumConfigurations: 1,
	}
}

// Bytes encodes the descriptor in USB little-endian wire format.
func (d DeviceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// ConfigDescriptor implements the Standard Configuration Descriptor (USB
// 2.0 spec, Table 9-10).
type ConfigDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	Configuration      uint8
	Attributes         uint8
	MaxPower           uint8
}

// Remote-wakeup attribute bit (USB 2.0 spec, Table 9-10); bit 7 is always
// set (reserved, set to one).
const configAttrRemoteWakeup = 0x80 | 0x20

// InterfaceDescriptor implements the Standard Interface Descriptor (USB
// 2.0 spec, Table 9-12).
type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	Interface         uint8
}

// EndpointDescriptor implements the Standard Endpoint Descriptor (USB 2.0
// spec, Table 9-13).
type EndpointDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// bulk transfer type attribute (USB 2.0 spec, Table 9-13).
const endpointAttrBulk = 0x02

// Bytes encodes the endpoint descriptor in USB wire format, the shape
// EpEnable expects (spec.md §4.4).
func (e EndpointDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, e)
	return buf.Bytes()
}

// ConfigBlock is the full configuration descriptor, concatenated in wire
// order: config, interface, bulk-IN endpoint, bulk-OUT endpoint
// (spec.md §4.4, §6).
type ConfigBlock struct {
	Config      ConfigDescriptor
	Interface   InterfaceDescriptor
	EndpointIn  EndpointDescriptor
	EndpointOut EndpointDescriptor
}

// NewConfigBlock returns the fixed me56ps2 configuration descriptor block.
func NewConfigBlock() ConfigBlock {
	const (
		configLen    = 9
		interfaceLen = 9
		endpointLen  = 7
	)
	total := configLen + interfaceLen + 2*endpointLen

	return ConfigBlock{
		Config: ConfigDescriptor{
			Length:             configLen,
			DescriptorType:     TypeConfig,
			TotalLength:        uint16(total),
			NumInterfaces:      1,
			ConfigurationValue: 1,
			Configuration:      2,
			Attributes:         configAttrRemoteWakeup,
			MaxPower:           ConfigMaxPower,
		},
		Interface: InterfaceDescriptor{
			Length:            interfaceLen,
			DescriptorType:    TypeInterface,
			InterfaceNumber:   0,
			AlternateSetting:  0,
			NumEndpoints:      2,
			InterfaceClass:    0xFF, // vendor specific
			InterfaceSubClass: 0xFF,
			InterfaceProtocol: 0xFF,
			Interface:         2,
		},
		EndpointIn: EndpointDescriptor{
			Length:          endpointLen,
			DescriptorType:  TypeEndpoint,
			EndpointAddress: DirIn | EndpointAddrBulk,
			Attributes:      endpointAttrBulk,
			MaxPacketSize:   MaxPacketEP,
			Interval:        0,
		},
		EndpointOut: EndpointDescriptor{
			Length:          endpointLen,
			DescriptorType:  TypeEndpoint,
			EndpointAddress: EndpointAddrBulk, // OUT direction bit is 0
			Attributes:      endpointAttrBulk,
			MaxPacketSize:   MaxPacketEP,
			Interval:        0,
		},
	}
}

// Bytes concatenates config + interface + bulk-IN ep + bulk-OUT ep in wire
// order, matching the original's single packed C struct byte-for-byte.
func (c ConfigBlock) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, c.Config)
	binary.Write(buf, binary.LittleEndian, c.Interface)
	binary.Write(buf, binary.LittleEndian, c.EndpointIn)
	binary.Write(buf, binary.LittleEndian, c.EndpointOut)
	return buf.Bytes()
}

// StringDescriptors holds the four fixed string descriptors, pre-encoded
// to their UTF-16LE wire bytes, in index order 0..3 (spec.md §6).
var StringDescriptors = buildStringDescriptors()

func buildStringDescriptors() [4][]byte {
	return [4][]byte{
		encodeLangIDString(0x0409),
		encodeUTF16String("N/A"),
		encodeUTF16String("Modem emulator"),
		encodeUTF16String("N/A"),
	}
}

func encodeLangIDString(langID uint16) []byte {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, langID)
	return wrapStringDescriptor(payload)
}

func encodeUTF16String(s string) []byte {
	units := utf16.Encode([]rune(s))
	payload := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(payload[i*2:], u)
	}
	return wrapStringDescriptor(payload)
}

func wrapStringDescriptor(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	out[0] = uint8(len(out))
	out[1] = TypeString
	copy(out[2:], payload)
	return out
}

// StringDescriptor returns string descriptor bytes for index idx, and
// whether idx is valid (spec.md §4.4: index >= 4 stalls).
func StringDescriptor(idx int) ([]byte, bool) {
	if idx < 0 || idx >= len(StringDescriptors) {
		return nil, false
	}
	return StringDescriptors[idx], true
}
