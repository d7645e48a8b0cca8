// Writeseq-jtag replays write sequences on a target through
// arm-none-eabi-gdb and OpenOCD.
//
// Two delivery paths are offered:
//
//   - apply drives the stores from the host, one GDB command each
//   - load-image copies the position independent replay routine and its
//     Argument Block into target RAM and calls it on the target CPU
//
// Prerequisites:
//
//   - arm-none-eabi-gdb installed and in PATH
//   - OpenOCD running and attached to the target over JTAG or SWD
//
// See 'writeseq-jtag --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/writeseq/internal/logging"
	"github.com/muurk/writeseq/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "writeseq-jtag",
	Short: "Replay word write sequences over JTAG",
	Long: `Replay Argument Blocks on a halted target using arm-none-eabi-gdb via OpenOCD.

Input files can be YAML plans, images built with 'writeseq build', or raw
encoded blocks. Every command connects, does its work and detaches; the
target is left halted unless --resume is given.

Prerequisites:
  - arm-none-eabi-gdb installed and in PATH
  - OpenOCD running and connected to the target

Defaults for the GDB path, OpenOCD endpoint and timeout come from the
writeseq config file; named devices can be selected with --device.

Use 'writeseq-jtag verify-setup' to check prerequisites.`,
	Version: version.Version,
	Example: `  # Verify GDB and OpenOCD setup
  writeseq-jtag verify-setup

  # Replay a plan from the host and read every address back
  writeseq-jtag apply unlock.yaml --verify

  # Run the replay routine on the target itself
  writeseq-jtag load-image unlock.yaml --base 0x20000000`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if !versionVerbose {
			fmt.Printf("writeseq-jtag %s\n", version.Full())
			return
		}
		for _, k := range []string{"Version", "Commit", "Go", "Platform"} {
			fmt.Printf("%-9s %s\n", k+":", version.Details()[k])
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionVerbose, "details", false, "Include toolchain details")
}
