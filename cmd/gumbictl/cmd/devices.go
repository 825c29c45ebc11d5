package cmd

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached programmers",
	Long: `devices lists serial ports whose USB identity matches a programmer, then
the programmers visible on the raw USB bus. Use the port name with --port.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ports, err := client.ListPorts()
	if err != nil {
		return err
	}
	n := 0
	for _, p := range ports {
		if !p.USB || !isProgrammerPort(p) {
			logger.Debug("Skipping port", log.String("port", p.Name))
			continue
		}
		fmt.Printf("serial  %-16s %s:%s %s %s\n", p.Name,
			strings.ToUpper(p.VID), strings.ToUpper(p.PID), p.Serial, p.Product)
		n++
	}

	devs, err := client.DiscoverUSB()
	if err != nil {
		// libusb may be missing or unprivileged; serial ports still work.
		logger.Warn("USB discovery failed", log.Err(err))
	}
	for _, d := range devs {
		fmt.Printf("usb     %03d:%03d          %04X:%04X %s %s\n",
			d.Bus, d.Address, d.VID, d.PID, d.Serial, strings.TrimSpace(d.Description))
		n++
	}
	if n == 0 {
		fmt.Println("No programmers found.")
	}
	return nil
}
