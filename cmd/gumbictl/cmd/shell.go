package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run commands against one open programmer",
	Long: `shell opens the programmer once and reads gumbictl commands from stdin,
one per line, with shell-style quoting. Connection flags given to shell
apply to the whole session. "exit" or end of input leaves.

Example:
  gumbictl shell --port /dev/ttyACM0
  gumbi> gpio high 12
  gumbi> read --target "my chip.conf" -n 256 -o head.bin`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	shared = c
	defer func() {
		shared = nil
		c.Close()
	}()

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("gumbi> ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		words, err := shlex.Split(in.Text())
		if err != nil {
			logger.Error("Bad command line", log.Err(err))
			continue
		}
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "exit", "quit":
			return nil
		case "shell":
			logger.Error("Already in a shell")
			continue
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if err := runLine(cmd, words); err != nil {
			logger.Error("Command failed", log.String("command", words[0]), log.Err(err))
		}
	}
}

// runLine runs one shell line as a gumbictl command. The subcommand's
// local flags go back to their defaults first so values do not leak from
// the previous line.
func runLine(shell *cobra.Command, words []string) error {
	sub, _, err := rootCmd.Find(words)
	if err != nil {
		return err
	}
	if sub == rootCmd {
		return fmt.Errorf("unknown command %q", strings.Join(words, " "))
	}
	sub.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	rootCmd.SetArgs(words)
	return rootCmd.ExecuteContext(shell.Context())
}
