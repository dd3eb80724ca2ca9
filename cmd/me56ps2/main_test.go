package main

import "testing"

func TestParseArgsBundledFlags(t *testing.T) {
	opt, help, err := parseArgs([]string{"-sv", "10.0.0.1", "10023"})
	if err != nil || help {
		t.Fatalf("unexpected error/help: %v %v", err, help)
	}
	if !opt.server {
		t.Fatal("expected -s to set server mode")
	}
	if opt.verbosity != 1 {
		t.Fatalf("expected verbosity 1, got %d", opt.verbosity)
	}
	if opt.ipAddr != "10.0.0.1" || opt.port != 10023 {
		t.Fatalf("unexpected positional parse: %+v", opt)
	}
	if opt.driverName != defaultDriverName || opt.deviceName != defaultDeviceName {
		t.Fatalf("expected default driver/device names, got %q/%q", opt.driverName, opt.deviceName)
	}
}

func TestParseArgsRepeatedVFlag(t *testing.T) {
	opt, _, err := parseArgs([]string{"-v", "-v", "-v", "127.0.0.1", "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.verbosity != 3 {
		t.Fatalf("expected verbosity 3, got %d", opt.verbosity)
	}
}

func TestParseArgsHelpShortCircuits(t *testing.T) {
	_, help, err := parseArgs([]string{"-h"})
	if err != nil || !help {
		t.Fatalf("expected help with no error, got help=%v err=%v", help, err)
	}
}

func TestParseArgsMissingPositionalsIsUsageError(t *testing.T) {
	_, help, err := parseArgs([]string{"-s"})
	if help {
		t.Fatal("did not expect help")
	}
	if err == nil {
		t.Fatal("expected a usage error for missing ip_addr/port")
	}
}

func TestParseArgsOptionalDriverDevice(t *testing.T) {
	opt, _, err := parseArgs([]string{"192.168.1.1", "5000", "my-udc", "my-device"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.driverName != "my-udc" || opt.deviceName != "my-device" {
		t.Fatalf("expected overridden driver/device, got %q/%q", opt.driverName, opt.deviceName)
	}
}

func TestParseArgsInvalidPort(t *testing.T) {
	_, _, err := parseArgs([]string{"10.0.0.1", "not-a-port"})
	if err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}
