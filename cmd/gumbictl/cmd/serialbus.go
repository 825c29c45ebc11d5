package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
)

var (
	readBack  uint32
	prefixHex string
)

var spiCmd = &cobra.Command{
	Use:   "spi (read N | write HEX | transfer HEX)",
	Short: "Bit-bang SPI to a target in the socket",
	Long: `spi drives the SS, CLK, MOSI and MISO lines named in the target file.
transfer writes HEX and then reads --read bytes while slave-select stays
asserted, the usual command/response shape of SPI flashes.

Example:
  gumbictl spi transfer 9f --read 3 --target w25q.conf`,
	Args: cobra.ExactArgs(2),
	RunE: runSPI,
}

var i2cCmd = &cobra.Command{
	Use:   "i2c (read ADDR N | write ADDR HEX | scan)",
	Short: "Bit-bang I2C to a target in the socket",
	Long: `i2c drives the SDA and SCL lines named in the target file. --prefix is
written before a read after a repeated start, or in front of every written
block, e.g. an EEPROM word address.

Example:
  gumbictl i2c read 0x50 16 --prefix 00 --target 24c02.conf`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runI2C,
}

func init() {
	spiCmd.Flags().StringVarP(&targetPath, "target", "t", "", "target description file")
	spiCmd.Flags().Uint32VarP(&readBack, "read", "r", 0, "bytes to read after a transfer")
	i2cCmd.Flags().StringVarP(&targetPath, "target", "t", "", "target description file")
	i2cCmd.Flags().StringVar(&prefixHex, "prefix", "", "hex bytes sent before the data")
	rootCmd.AddCommand(spiCmd, i2cCmd)
}

func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.ToLower(s), "0x"), " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex %q", s)
	}
	return b, nil
}

func runSPI(cmd *cobra.Command, args []string) error {
	op := strings.ToLower(args[0])
	return withClient(func(c *client.Client) error {
		t, err := loadTarget(targetPath, "spi")
		if err != nil {
			return err
		}
		pins, err := c.PinCount()
		if err != nil {
			return err
		}
		cfg, err := t.SPI(pins)
		if err != nil {
			return err
		}
		s, err := c.SPI(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		var got []byte
		switch op {
		case "read":
			n, perr := strconv.ParseUint(args[1], 0, 32)
			if perr != nil {
				return fmt.Errorf("bad count %q", args[1])
			}
			got, err = s.Read(uint32(n), false)
		case "write", "transfer":
			w, perr := parseHex(args[1])
			if perr != nil {
				return perr
			}
			if op == "write" || readBack == 0 {
				err = s.Write(w, false)
			} else {
				got, err = s.Transfer(w, readBack)
			}
		default:
			return fmt.Errorf("unknown spi operation %q", args[0])
		}
		if err != nil {
			return err
		}
		if len(got) > 0 {
			fmt.Println(hex.EncodeToString(got))
		}
		return s.Close()
	})
}

func runI2C(cmd *cobra.Command, args []string) error {
	op := strings.ToLower(args[0])
	var prefix []byte
	if prefixHex != "" {
		var err error
		if prefix, err = parseHex(prefixHex); err != nil {
			return err
		}
	}
	return withClient(func(c *client.Client) error {
		t, err := loadTarget(targetPath, "i2c")
		if err != nil {
			return err
		}
		pins, err := c.PinCount()
		if err != nil {
			return err
		}
		cfg, err := t.I2C(pins)
		if err != nil {
			return err
		}
		bus, err := c.I2C(cfg)
		if err != nil {
			return err
		}
		defer bus.Close()

		if op == "scan" {
			return i2cScan(bus)
		}
		if len(args) != 3 {
			return fmt.Errorf("i2c %s needs an address and an argument", op)
		}
		addr, err := strconv.ParseUint(args[1], 0, 7)
		if err != nil {
			return fmt.Errorf("bad 7-bit address %q", args[1])
		}
		switch op {
		case "read":
			n, err := strconv.ParseUint(args[2], 0, 32)
			if err != nil {
				return fmt.Errorf("bad count %q", args[2])
			}
			got, err := bus.Read(uint8(addr), prefix, uint32(n))
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(got))
		case "write":
			data, err := parseHex(args[2])
			if err != nil {
				return err
			}
			if err := bus.Write(uint8(addr), prefix, data); err != nil {
				return err
			}
			logger.Info("I2C write", log.Hex("addr", uint8(addr)), log.Int("bytes", len(data)))
		default:
			return fmt.Errorf("unknown i2c operation %q", args[0])
		}
		return bus.Close()
	})
}

// i2cScan probes every non-reserved address with a one byte read.
func i2cScan(bus *client.I2C) error {
	found := 0
	for a := uint8(0x08); a < 0x78; a++ {
		_, err := bus.Read(a, nil, 1)
		if client.IsNack(err) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("0x%02X\n", a)
		found++
	}
	logger.Info("I2C scan done", log.Int("devices", found))
	return bus.Close()
}
