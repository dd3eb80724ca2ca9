// Package enum is the enumeration responder (component E): given a
// classified control request and the fixed descriptor set, it decides
// what ep0 should send back, or whether to stall. It holds no state of
// its own and performs no I/O.
package enum

import (
	"github.com/behrlich/me56ps2-gadget/internal/control"
	"github.com/behrlich/me56ps2-gadget/internal/descriptors"
)

// The vendor request used to signal on-hook/off-hook, and the wValue
// bit that distinguishes them. Reverse-engineered; see spec.md §9.
const (
	vendorReqHook = 0x01
	hookBitMask   = 0x0101
	hookOffValue  = 0x0101
	hookOnValue   = 0x0100
)

// HookState reports an on-hook/off-hook vendor request, if this
// Response carries one.
type HookState int

const (
	HookUnchanged HookState = iota
	HookOnHook
	HookOffHook
)

// Response is the enumeration responder's verdict for one control
// request.
type Response struct {
	// Stall means the caller must ep0_stall instead of replying.
	Stall bool

	// Data is the reply payload for a device-to-host request. The
	// caller is responsible for truncating it to wLength.
	Data []byte

	// Configure is set on SET_CONFIGURATION: the caller must enable
	// the bulk endpoints, draw vbus and configure() exactly once.
	Configure bool

	// Hook reports an on-hook/off-hook vendor request.
	Hook HookState
}

// Respond classifies req against the fixed descriptor set and
// produces the reply the original firmware gives, following
// original_source/me56ps2.cpp's process_control_packet in request
// order: GET_DESCRIPTOR, SET_CONFIGURATION, SET_INTERFACE, the hook
// vendor request, any other vendor request, then stall.
func Respond(req control.Request, cfg descriptors.ConfigBlock) Response {
	switch {
	case req.Is(control.TypeStandard, control.ReqGetDescriptor):
		return respondGetDescriptor(req, cfg)

	case req.Is(control.TypeStandard, control.ReqSetConfiguration):
		return Response{Configure: true}

	case req.Is(control.TypeStandard, control.ReqSetInterface):
		return Response{}

	case req.Type() == control.TypeVendor && req.BRequest == vendorReqHook:
		r := Response{}
		switch req.WValue & hookBitMask {
		case hookOffValue:
			r.Hook = HookOffHook
		case hookOnValue:
			r.Hook = HookOnHook
		}
		return r

	case req.Type() == control.TypeVendor:
		return Response{}

	default:
		return Response{Stall: true}
	}
}

func respondGetDescriptor(req control.Request, cfg descriptors.ConfigBlock) Response {
	switch req.DescriptorType() {
	case descriptors.TypeDevice:
		return Response{Data: descriptors.NewDeviceDescriptor().Bytes()}
	case descriptors.TypeConfig:
		return Response{Data: cfg.Bytes()}
	case descriptors.TypeString:
		data, ok := descriptors.StringDescriptor(int(req.DescriptorIndex()))
		if !ok {
			return Response{Stall: true}
		}
		return Response{Data: data}
	default:
		return Response{Stall: true}
	}
}
