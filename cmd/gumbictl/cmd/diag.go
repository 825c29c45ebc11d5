package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
	"github.com/e2thenegpii/gumbi/drivers/mcp23s17"
	"github.com/e2thenegpii/gumbi/types"
)

var (
	setPins    int
	speedBytes uint32
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the programmer answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			start := time.Now()
			if err := c.Ping(); err != nil {
				return err
			}
			fmt.Printf("pong in %s\n", time.Since(start).Round(time.Microsecond))
			return nil
		})
	},
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the board id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			id, err := c.ID()
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print board id, firmware version and expander layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			in, err := c.Info()
			if err != nil {
				return err
			}
			fmt.Printf("Board ID:         %s\n", in.BoardID)
			fmt.Printf("Firmware Version: %s\n", in.Firmware)
			fmt.Printf("I/O Chip Count:   %d\n", in.Chips)
			fmt.Printf("I/O Pin Count:    %d\n", in.Pins)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Unwind any mode the programmer was left in",
	Long: `reset sends the EXIT burst that returns the programmer to mode selection
from anywhere, discards what it answers and resynchronises on the board id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			if noReset {
				return c.Reset()
			}
			// connect already reset the programmer.
			logger.Info("Programmer reset")
			return nil
		})
	},
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "Print or override the usable pin count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			var (
				n   int
				err error
			)
			if cmd.Flags().Changed("set") {
				n, err = c.SetPinCount(setPins)
			} else {
				n, err = c.PinCount()
			}
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rescan the expander chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			n, err := c.ScanBus()
			if err != nil {
				return err
			}
			logger.Info("Expander chain scanned",
				log.Int("chips", n/mcp23s17.PinsPerDevice), log.Int("pins", n))
			fmt.Println(n)
			return nil
		})
	},
}

var speedtestCmd = &cobra.Command{
	Use:   "speedtest",
	Short: "Measure link throughput from programmer to host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			d, err := c.SpeedTest(speedBytes)
			if err != nil {
				return err
			}
			rate := float64(speedBytes) / d.Seconds() / 1024
			fmt.Printf("%d bytes in %s (%.1f KiB/s)\n", speedBytes, d.Round(time.Millisecond), rate)
			return nil
		})
	},
}

var xferCmd = &cobra.Command{
	Use:   "xfer",
	Short: "Check a block survives the round trip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) error {
			p := make([]byte, types.XferTestSize)
			for i := range p {
				p[i] = byte(i)
			}
			echo, err := c.Xfer(p)
			if err != nil {
				return err
			}
			if !bytes.Equal(echo, p) {
				for i := range p {
					if echo[i] != p[i] {
						return fmt.Errorf("echo differs at byte %d: sent 0x%02X got 0x%02X", i, p[i], echo[i])
					}
				}
			}
			fmt.Println("xfer ok")
			return nil
		})
	},
}

func init() {
	pinsCmd.Flags().IntVar(&setPins, "set", 0, "override the pin count; scan restores the detected count")
	speedtestCmd.Flags().Uint32VarP(&speedBytes, "bytes", "n", 1<<20, "bytes to stream")
	rootCmd.AddCommand(pingCmd, idCmd, infoCmd, resetCmd, pinsCmd, scanCmd, speedtestCmd, xferCmd)
}
