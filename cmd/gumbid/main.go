//go:build !(rp2040 || rp2350)

// gumbid runs the programmer firmware on a Linux board (an expander chain on
// spidev, the host on a tty such as a USB gadget port) or against a
// simulated chain on stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/platform"
	"github.com/e2thenegpii/gumbi/platform/boards"
	"github.com/e2thenegpii/gumbi/session"
)

type options struct {
	board     string
	spi       string
	hz        uint32
	csPin     int
	resetPin  int
	port      string
	baud      uint32
	busyLimit int
	half      uint32
	simChips  int
	debug     bool
	quiet     bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "gumbid",
	Short: "Serve the GUMBI programmer protocol from a Linux board",
	Long: `gumbid scans the MCP23S17 expander chain and serves host commands on the
board's link until the link closes.

Examples:
  gumbid --board raspberrypi --port /dev/ttyGS0
  gumbid --sim 4            # simulated chain, host on stdin/stdout`,
	Version:       "2.0.0",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.board, "board", boards.RaspberryPi.Name, fmt.Sprintf("board profile %v", boards.Names()))
	f.StringVar(&opts.spi, "spi", "", "SPI port (overrides the board)")
	f.Uint32Var(&opts.hz, "hz", 0, "SPI clock in Hz (overrides the board)")
	f.IntVar(&opts.csPin, "cs-pin", 0, "GPIO driving chip-select, -1 for the controller's own")
	f.IntVar(&opts.resetPin, "reset-pin", 0, "GPIO driving the expander reset line")
	f.StringVar(&opts.port, "port", "", "host link tty (overrides the board)")
	f.Uint32Var(&opts.baud, "baud", 0, "host link baud rate (overrides the board)")
	f.IntVar(&opts.busyLimit, "busy-limit", 0, "busy polls before a parallel write times out")
	f.Uint32Var(&opts.half, "half-period", 0, "soft SPI/I2C half clock period in µs")
	f.IntVar(&opts.simChips, "sim", 0, "simulate a chain of this many expanders and serve on stdio")
	f.BoolVar(&opts.debug, "debug", false, "debug logging")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "errors only")
}

func main() {
	if err := rootCmd.ExecuteContext(app.Context()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
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

// boardFromFlags resolves the board profile and applies the overrides the
// user set.
func boardFromFlags(cmd *cobra.Command, o options) (boards.Board, error) {
	b, ok := boards.ByName(o.board)
	if !ok {
		return b, fmt.Errorf("unknown board %q (have %v)", o.board, boards.Names())
	}
	changed := cmd.Flags().Changed
	if changed("spi") {
		b.SPI = o.spi
	}
	if changed("hz") {
		b.SPIHz = o.hz
	}
	if changed("cs-pin") {
		b.CS = o.csPin
	}
	if changed("reset-pin") {
		b.Reset = o.resetPin
	}
	if changed("port") {
		b.Link = o.port
	}
	if changed("baud") {
		b.Baud = o.baud
	}
	if changed("busy-limit") {
		b.BusyLimit = o.busyLimit
	}
	if changed("half-period") {
		b.HalfPeriod = o.half
	}
	return b, nil
}

func run(cmd *cobra.Command, args []string) error {
	logger := createLogger(opts.debug, opts.quiet)

	var hw *platform.Hardware
	if opts.simChips > 0 {
		hw, _ = platform.OpenSim(opts.simChips, platform.Stdio{})
		logger.Info("Simulating expander chain", log.Int("chips", opts.simChips))
	} else {
		b, err := boardFromFlags(cmd, opts)
		if err != nil {
			return err
		}
		if hw, err = platform.OpenLinux(b); err != nil {
			return err
		}
		logger.Info("Board opened",
			log.String("board", b.Name), log.String("spi", b.SPI), log.String("link", b.Link))
	}
	defer hw.Close()

	f, err := hw.Fabric()
	if err != nil {
		// SCANBUS can find the chain later.
		logger.Warn("Expander scan failed", log.Err(err))
	}
	logger.Info("Expander chain",
		log.Int("chips", f.ChipCount()), log.Int("pins", f.PinCount()))

	so := hw.SessionOptions()
	so.Logf = func(format string, a ...any) { logger.Debug(fmt.Sprintf(format, a...)) }
	s := session.New(hw.Link, f, so)
	return serve(cmd.Context(), s, logger)
}

// serve runs the session until the link closes or ctx is cancelled,
// restarting it after any other failure.
func serve(ctx context.Context, s *session.Session, logger *log.Logger) error {
	for {
		err := s.Serve(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			logger.Info("Link closed")
			return nil
		case errors.Is(err, context.Canceled):
			logger.Info("Operation cancelled")
			return nil
		}
		logger.Error("Session failed", log.Err(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}
