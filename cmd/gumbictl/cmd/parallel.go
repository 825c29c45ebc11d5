package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/e2thenegpii/gumbi/client"
)

var (
	targetPath  string
	startAddr   uint32
	byteCount   uint32
	outPath     string
	inPath      string
	verify      bool
	commandsKey string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a parallel memory into a file",
	Long: `read dumps --count bytes of a parallel memory, starting at word address
--addr, into --out. The target file describes the socket wiring.

Example:
  gumbictl read --target 28c256.conf --count 32768 --out dump.bin`,
	Args: cobra.NoArgs,
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Program a parallel memory from a file",
	Args:  cobra.NoArgs,
	RunE:  runWrite,
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a command list from the target file (chip erase, id entry)",
	Long: `exec sends the target's command list, address/data pairs written as bus
cycles, without moving any data. --commands selects another list than
COMMANDS, e.g. --commands ERASE.`,
	Args: cobra.NoArgs,
	RunE: runExec,
}

func init() {
	for _, c := range []*cobra.Command{readCmd, writeCmd, execCmd} {
		c.Flags().StringVarP(&targetPath, "target", "t", "", "target description file")
	}
	readCmd.Flags().Uint32VarP(&startAddr, "addr", "a", 0, "first word address")
	readCmd.Flags().Uint32VarP(&byteCount, "count", "n", 0, "bytes to read")
	readCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	writeCmd.Flags().Uint32VarP(&startAddr, "addr", "a", 0, "first word address")
	writeCmd.Flags().StringVarP(&inPath, "in", "i", "", "input file")
	writeCmd.Flags().BoolVar(&verify, "verify", false, "read back and compare after writing")
	execCmd.Flags().StringVar(&commandsKey, "commands", client.KeyCommands, "command list key in the target file")
	rootCmd.AddCommand(readCmd, writeCmd, execCmd)
}

// openParallel enters PARALLEL mode for the target in --target, with pins
// mapped onto the programmer's socket.
func openParallel(c *client.Client) (*client.Parallel, error) {
	t, err := loadTarget(targetPath, "parallel")
	if err != nil {
		return nil, err
	}
	pins, err := c.PinCount()
	if err != nil {
		return nil, err
	}
	cfg, err := t.Parallel(pins)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parallel target",
		log.String("file", targetPath),
		log.Int("address_pins", len(cfg.AddrPins)),
		log.Int("data_pins", len(cfg.DataPins)))
	return c.Parallel(cfg)
}

func progress(what string) func(done, total int) {
	if quiet {
		return nil
	}
	last := -1
	return func(done, total int) {
		pct := done * 100 / total
		if pct != last {
			last = pct
			fmt.Fprintf(os.Stderr, "\r%s %3d%%", what, pct)
		}
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func runRead(cmd *cobra.Command, args []string) error {
	if outPath == "" || byteCount == 0 {
		return errors.New("--out and --count are required")
	}
	return withClient(func(c *client.Client) error {
		p, err := openParallel(c)
		if err != nil {
			return err
		}
		defer p.Close()
		data, err := p.Read(startAddr, byteCount, progress("read"))
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return err
		}
		logger.Info("Memory read", log.String("file", outPath), log.Int("bytes", len(data)))
		return p.Close()
	})
}

func runWrite(cmd *cobra.Command, args []string) error {
	if inPath == "" {
		return errors.New("--in is required")
	}
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	return withClient(func(c *client.Client) error {
		p, err := openParallel(c)
		if err != nil {
			return err
		}
		defer p.Close()
		if err := p.Write(startAddr, data, progress("write")); err != nil {
			return err
		}
		logger.Info("Memory written", log.String("file", inPath), log.Int("bytes", len(data)))
		if verify {
			back, err := p.Read(startAddr, uint32(len(data)), progress("verify"))
			if err != nil {
				return err
			}
			if i := firstDiff(data, back); i >= 0 {
				return fmt.Errorf("verify failed at byte 0x%X: wrote 0x%02X read 0x%02X", i, data[i], back[i])
			}
			logger.Info("Verify passed")
		}
		return p.Close()
	})
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	for i := range a {
		if i >= len(b) || a[i] != b[i] {
			return i
		}
	}
	return len(a)
}

func runExec(cmd *cobra.Command, args []string) error {
	return withClient(func(c *client.Client) error {
		t, err := loadTarget(targetPath, "parallel")
		if err != nil {
			return err
		}
		cmds, err := t.Commands(commandsKey)
		if err != nil {
			return err
		}
		if len(cmds) == 0 {
			return fmt.Errorf("target has no %s list", commandsKey)
		}
		p, err := openParallel(c)
		if err != nil {
			return err
		}
		defer p.Close()
		p.SetCommands(cmds)
		if err := p.Exec(); err != nil {
			return err
		}
		logger.Info("Commands executed", log.Int("cycles", len(cmds)/2))
		return p.Close()
	})
}

