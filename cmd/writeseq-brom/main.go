// Writeseq-brom replays write sequences on MediaTek SoCs through the boot
// ROM download protocol over USB serial.
//
// The boot ROM can store words but cannot call functions for the host, so
// blocks with an acknowledgment callback are either refused or, with
// --drop-callback, replayed without it. The inject command instead loads
// the replay routine into SRAM and jumps to it, which runs the callback on
// the target.
//
// Prerequisites:
//
//   - The SoC held in boot ROM download mode (enumerates as a CDC ACM port)
//   - Read and write access to the serial device
//
// See 'writeseq-brom --help' for available commands.
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
	Use:   "writeseq-brom",
	Short: "Replay word write sequences over the MediaTek boot ROM",
	Long: `Replay Argument Blocks on a MediaTek SoC in boot ROM download mode.

Stores are sent with WRITE32, or through the CQDMA engine (--cqdma) for
ranges the boot ROM refuses to touch. The SoC is detected from its
hardware code unless --soc is given.

Defaults for the serial port and SoC can come from a named device in the
writeseq config file (--device).`,
	Version: version.Version,
	Example: `  # Identify the connected SoC
  writeseq-brom hw-info --port /dev/ttyACM0

  # Replay a plan's stores, skipping its callback
  writeseq-brom apply unlock.yaml --drop-callback

  # Run the replay routine on the SoC itself
  writeseq-brom inject unlock.yaml`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("writeseq-brom %s\n", version.Full())
	},
}
