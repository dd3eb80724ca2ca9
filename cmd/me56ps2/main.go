package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/behrlich/me56ps2-gadget"
	"github.com/behrlich/me56ps2-gadget/internal/errs"
	"github.com/behrlich/me56ps2-gadget/internal/logging"
	"github.com/behrlich/me56ps2-gadget/internal/rawgadget"
)

// Default raw-gadget driver/device names for a Raspberry Pi 4 Model B,
// the "else" branch of the original's HW_* preprocessor selection (see
// DESIGN.md's Open Question decisions); any other board passes its own
// names as the optional usb_driver/usb_device positional arguments.
const (
	defaultDriverName = "fe980000.usb"
	defaultDeviceName = "fe980000.usb"
)

const gadgetPath = "/dev/raw-gadget"

type options struct {
	server     bool
	verbosity  int
	ipAddr     string
	port       uint16
	driverName string
	deviceName string
}

func usage(prog string) string {
	base := filepath.Base(prog)
	return fmt.Sprintf(`usage: %s [-svh] ip_addr port [usb_driver] [usb_device]

  -s            run as server (listen on ip_addr:port instead of dialling)
  -v            increase debug verbosity (repeatable, 0..3+ meaningful)
  -h            show this help

  ip_addr       IPv4 address to bind (server) or dial (client)
  port          TCP port, decimal
  usb_driver    raw-gadget driver name (default: %s)
  usb_device    raw-gadget device name (default: %s)
`, base, defaultDriverName, defaultDeviceName)
}

// parseArgs hand-rolls the bundled short-flag scan getopt(argc, argv,
// "svh") performs, since the stdlib flag package cannot parse a single
// bundled argument like "-svh".
func parseArgs(args []string) (options, bool, error) {
	opt := options{driverName: defaultDriverName, deviceName: defaultDeviceName}

	var positional []string
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if len(arg) < 2 || arg[0] != '-' {
			break
		}
		if arg == "--" {
			i++
			break
		}
		for _, c := range arg[1:] {
			switch c {
			case 's':
				opt.server = true
			case 'v':
				opt.verbosity++
			case 'h':
				return opt, true, nil
			default:
				return opt, false, errs.Usage("parseArgs", fmt.Sprintf("unrecognised flag -%c", c))
			}
		}
	}
	positional = args[i:]

	if len(positional) < 2 {
		return opt, false, errs.Usage("parseArgs", "ip_addr and port are required")
	}
	opt.ipAddr = positional[0]

	port, err := strconv.ParseUint(positional[1], 10, 16)
	if err != nil {
		return opt, false, errs.Usage("parseArgs", fmt.Sprintf("invalid port %q", positional[1]))
	}
	opt.port = uint16(port)

	if len(positional) > 2 {
		opt.driverName = positional[2]
	}
	if len(positional) > 3 {
		opt.deviceName = positional[3]
	}
	return opt, false, nil
}

func main() {
	opt, showHelp, err := parseArgs(os.Args[1:])
	if showHelp {
		fmt.Print(usage(os.Args[0]))
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprint(os.Stderr, usage(os.Args[0]))
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		os.Exit(1)
	}

	logLevel := logging.LevelInfo
	if opt.verbosity > 0 {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{Level: logLevel, Verbosity: opt.verbosity})
	logging.SetDefault(logger)

	usb, err := rawgadget.Open(gadgetPath, logger)
	if err != nil {
		logger.Error("failed to open raw-gadget device", "path", gadgetPath, "error", err)
		os.Exit(1)
	}
	defer usb.Close()

	cfg := me56ps2.Config{
		Server:     opt.server,
		Address:    opt.ipAddr,
		Port:       opt.port,
		DriverName: opt.driverName,
		DeviceName: opt.deviceName,
		GadgetPath: gadgetPath,
		Logger:     logger,
	}

	gadget, err := me56ps2.New(cfg, usb)
	if err != nil {
		logger.Error("failed to build gadget", "error", err)
		os.Exit(1)
	}

	logger.Info("starting me56ps2 emulator",
		"server", opt.server, "ip_addr", opt.ipAddr, "port", opt.port,
		"usb_driver", opt.driverName, "usb_device", opt.deviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- gadget.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			logger.Error("emulator stopped", "error", err)
			gadget.Close()
			os.Exit(1)
		}
	case <-sigCh:
		logger.Info("received shutdown signal")
		cancel()

		cleanupDone := make(chan struct{})
		go func() {
			gadget.Close()
			close(cleanupDone)
		}()

		select {
		case <-cleanupDone:
		case <-time.After(2 * time.Second):
			logger.Info("cleanup timeout, forcing exit")
		}
	}
}
