package descriptors

import "testing"

func TestDeviceDescriptorBytesBitExact(t *testing.T) {
	b := NewDeviceDescriptor().Bytes()
	if len(b) != 18 {
		t.Fatalf("expected 18-byte device descriptor, got %d", len(b))
	}
	if b[0] != 18 || b[1] != TypeDevice {
		t.Fatalf("unexpected length/type header: %v", b[:2])
	}
	gotVendor := uint16(b[8]) | uint16(b[9])<<8
	gotProduct := uint16(b[10]) | uint16(b[11])<<8
	if gotVendor != VendorID || gotProduct != ProductID {
		t.Fatalf("expected idVendor=%#04x idProduct=%#04x, got %#04x/%#04x", VendorID, ProductID, gotVendor, gotProduct)
	}
}

func TestConfigBlockWireOrderAndTotalLength(t *testing.T) {
	b := NewConfigBlock().Bytes()
	const want = 9 + 9 + 7 + 7
	if len(b) != want {
		t.Fatalf("expected %d-byte config block, got %d", want, len(b))
	}
	total := uint16(b[2]) | uint16(b[3])<<8
	if int(total) != want {
		t.Fatalf("expected wTotalLength=%d, got %d", want, total)
	}
	// config, then interface, then bulk-IN ep, then bulk-OUT ep.
	if b[1] != TypeConfig || b[10] != TypeInterface || b[19] != TypeEndpoint || b[26] != TypeEndpoint {
		t.Fatalf("unexpected descriptor type sequence: %v", b)
	}
	if b[20] != DirIn|EndpointAddrBulk {
		t.Fatalf("expected bulk-IN address %#02x, got %#02x", DirIn|EndpointAddrBulk, b[20])
	}
	if b[27] != EndpointAddrBulk {
		t.Fatalf("expected bulk-OUT address %#02x, got %#02x", EndpointAddrBulk, b[27])
	}
}

func TestStringDescriptorIndexBounds(t *testing.T) {
	if _, ok := StringDescriptor(4); ok {
		t.Fatal("expected index 4 to be invalid")
	}
	if _, ok := StringDescriptor(-1); ok {
		t.Fatal("expected negative index to be invalid")
	}
	data, ok := StringDescriptor(StringIDProduct)
	if !ok {
		t.Fatal("expected product string index to be valid")
	}
	if data[1] != TypeString {
		t.Fatalf("expected bDescriptorType=TypeString, got %d", data[1])
	}
}
