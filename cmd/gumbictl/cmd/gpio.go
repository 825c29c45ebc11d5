package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
)

var (
	monitorCount    uint32
	monitorInterval time.Duration
)

var gpioCmd = &cobra.Command{
	Use:   "gpio (high|low|read) PIN...",
	Short: "Drive or sample individual board pins",
	Long: `gpio enters GPIO mode, applies the action to each pin in order and leaves.
Pins are board pins counted from 0; pin 0 is never valid. Leaving GPIO mode
returns every pin to a floating input.

Examples:
  gumbictl gpio high 12 13
  gumbictl gpio read 0x20`,
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{"high", "low", "read"},
	RunE:      runGPIO,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print live pin levels of every expander",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().Uint32VarP(&monitorCount, "count", "n", 1, "snapshots to take")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "pause between snapshots")
	rootCmd.AddCommand(gpioCmd, monitorCmd)
}

func runGPIO(cmd *cobra.Command, args []string) error {
	action := strings.ToLower(args[0])
	switch action {
	case "high", "low", "read":
	default:
		return fmt.Errorf("unknown gpio action %q", args[0])
	}
	pins := make([]uint8, 0, len(args)-1)
	for _, a := range args[1:] {
		p, err := parsePin(a)
		if err != nil {
			return err
		}
		pins = append(pins, p)
	}

	return withClient(func(c *client.Client) error {
		g, err := c.GPIO()
		if err != nil {
			return err
		}
		defer g.Close()
		for _, p := range pins {
			switch action {
			case "high":
				err = g.High(p)
			case "low":
				err = g.Low(p)
			case "read":
				var high bool
				if high, err = g.Read(p); err == nil {
					fmt.Printf("%d: %d\n", p, b2i(high))
				}
			}
			if err != nil {
				return err
			}
		}
		return g.Close()
	})
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func runMonitor(cmd *cobra.Command, args []string) error {
	return withClient(func(c *client.Client) error {
		in, err := c.Info()
		if err != nil {
			return err
		}
		m, err := c.Monitor(in.Chips)
		if err != nil {
			return err
		}
		defer m.Close()
		for i := uint32(0); i < monitorCount; i++ {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			snaps, err := m.Sample(1)
			if err != nil {
				return err
			}
			printSnapshot(snaps[0])
			if monitorInterval > 0 {
				time.Sleep(monitorInterval)
			}
		}
		return m.Close()
	})
}

// printSnapshot prints one line per expander, pin 0 of the chip first.
func printSnapshot(s []byte) {
	var sb strings.Builder
	for chip := 0; chip+1 < len(s); chip += 2 {
		sb.Reset()
		fmt.Fprintf(&sb, "chip %d  ", chip/2)
		for _, bank := range s[chip : chip+2] {
			for bit := 0; bit < 8; bit++ {
				sb.WriteByte('0' + bank>>bit&1)
			}
			sb.WriteByte(' ')
		}
		fmt.Println(strings.TrimSpace(sb.String()))
	}
}
