// Writeseq builds, inspects and simulates write sequences.
//
// It works offline: plans are expanded into Argument Blocks, blocks are
// packed behind the replay routine into loadable images, and both the
// routine and the Go executor can be run against a simulated ARM core.
// Delivery to hardware is done by writeseq-jtag and writeseq-brom.
//
// Usage:
//
//	writeseq [command] [flags]
//
// See 'writeseq --help' for available commands.
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
	Use:   "writeseq",
	Short: "Write sequence builder and simulator",
	Long: `Build, inspect and simulate Argument Blocks: a callback address, an
operation count and that many (address, value) word pairs, replayed in
order by a small position independent routine.

Plans are YAML files naming the stores, optionally pulling in patch sets
from a SoC profile. The same block can be delivered over JTAG
(writeseq-jtag) or the MediaTek boot ROM (writeseq-brom).`,
	Version: version.Version,
	Example: `  # Expand a plan into a loadable image
  writeseq build unlock.yaml -o unlock.bin

  # Show what an image or block will do
  writeseq inspect unlock.bin

  # Run the routine on the simulator and compare with the Go executor
  writeseq simulate unlock.yaml`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Silent unless WRITESEQ_LOG_LEVEL is set
		_ = logging.InitializeFromEnv()
	},
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
		fmt.Printf("writeseq %s\n", version.Full())
	},
}
