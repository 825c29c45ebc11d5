// Package cmd implements the gumbictl command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
)

var (
	portName string
	baud     int
	useUSB   bool
	timeout  time.Duration
	noReset  bool
	debug    bool
	quiet    bool

	logger *log.Logger
	// shared is the open client while the shell runs; commands reuse it
	// instead of opening the port again.
	shared *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "gumbictl",
	Short: "Drive a GUMBI universal memory/IO programmer",
	Long: `gumbictl talks to a GUMBI programmer over its serial link (or raw USB)
to read and write parallel memories, bit-bang SPI and I2C targets and poke
individual socket pins.

Examples:
  gumbictl info --port /dev/ttyACM0
  gumbictl read --target 28c256.conf --out dump.bin
  gumbictl gpio high 12
  gumbictl spi transfer 9f --read 3 --target flash.conf`,
	Version:       "2.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = createLogger(debug, quiet)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(app.Context()); err != nil {
		if logger == nil {
			logger = createLogger(debug, quiet)
		}
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			os.Exit(1)
		}
		logger.Error("Command failed", log.Err(err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&portName, "port", "p", "", "serial port of the programmer (default: first programmer found)")
	pf.IntVarP(&baud, "baud", "b", client.DefaultBaud, "serial baud rate")
	pf.BoolVar(&useUSB, "usb", false, "talk to the programmer over raw USB bulk endpoints")
	pf.DurationVar(&timeout, "timeout", 2*time.Second, "link read timeout")
	pf.BoolVar(&noReset, "no-reset", false, "skip the reset burst before the command")
	pf.BoolVar(&debug, "debug", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "errors only")
}

func createLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// connect opens the programmer and brings it back to mode selection.
func connect() (*client.Client, error) {
	if shared != nil {
		return shared, nil
	}
	var (
		c   *client.Client
		err error
	)
	if useUSB {
		logger.Debug("Opening USB transport",
			log.Hex("vid", client.VendorID), log.Hex("pid", client.ProductID))
		c, err = client.OpenUSB(client.VendorID, client.ProductID, timeout)
	} else {
		name := portName
		if name == "" {
			if name, err = findPort(); err != nil {
				return nil, err
			}
		}
		logger.Debug("Opening serial port", log.String("port", name), log.Int("baud", baud))
		c, err = client.OpenSerial(name, baud, timeout)
	}
	if err != nil {
		return nil, err
	}
	if !noReset {
		if err := c.Reset(); err != nil {
			c.Close()
			return nil, fmt.Errorf("reset: %w", err)
		}
	}
	return c, nil
}

// release closes c unless the shell owns it.
func release(c *client.Client) {
	if c != shared {
		c.Close()
	}
}

// withClient runs fn against a connected programmer.
func withClient(fn func(c *client.Client) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer release(c)
	return fn(c)
}

func findPort() (string, error) {
	ports, err := client.ListPorts()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.USB && isProgrammerPort(p) {
			return p.Name, nil
		}
	}
	return "", errors.New("no programmer found; pass --port")
}

func isProgrammerPort(p client.Port) bool {
	vid, err1 := strconv.ParseUint(p.VID, 16, 16)
	pid, err2 := strconv.ParseUint(p.PID, 16, 16)
	return err1 == nil && err2 == nil && client.IsProgrammerID(uint16(vid), uint16(pid))
}

// parsePin accepts a board pin in decimal or 0x hex.
func parsePin(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad pin %q", s)
	}
	return uint8(v), nil
}

// loadTarget reads a target file and checks it describes mode.
func loadTarget(path, mode string) (*client.Target, error) {
	if path == "" {
		return nil, errors.New("--target is required")
	}
	t, err := client.LoadTarget(path)
	if err != nil {
		return nil, err
	}
	return t, t.Expect(mode)
}
