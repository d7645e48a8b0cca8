package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/config"
	"github.com/muurk/writeseq/internal/gdb"
	"github.com/muurk/writeseq/internal/logging"
	"github.com/muurk/writeseq/internal/plan"
	"github.com/muurk/writeseq/internal/ui"
)

// Command flags
var (
	gdbPath     string
	openocdHost string
	openocdPort int
	gdbTimeout  string
	gdbVerbose  bool // Show GDB raw output
	deviceName  string

	wordSize  int
	byteOrder string

	assumeYes   bool
	resume      bool
	verifyAfter bool

	loadBase string

	dumpAddress string
	dumpSize    string
	dumpOutput  string
)

func init() {
	// Common flags for all commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&openocdHost, "openocd-host", "localhost", "OpenOCD hostname")
	rootCmd.PersistentFlags().IntVar(&openocdPort, "openocd-port", 3333, "OpenOCD port")
	rootCmd.PersistentFlags().StringVar(&gdbPath, "gdb-path", "arm-none-eabi-gdb", "Path to arm-none-eabi-gdb binary")
	rootCmd.PersistentFlags().StringVar(&gdbTimeout, "timeout", "5m", "GDB operation timeout (e.g., 30s, 5m, 1h)")
	rootCmd.PersistentFlags().BoolVarP(&gdbVerbose, "verbose", "v", false, "Show detailed GDB output")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Named device from the config file")

	for _, c := range []*cobra.Command{applyCmd, verifyCmd, loadImageCmd} {
		c.Flags().IntVar(&wordSize, "word-size", 4, "Word size of raw block files (4 or 8)")
		c.Flags().StringVar(&byteOrder, "byte-order", "little", "Byte order of raw block files (little or big)")
	}

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(loadImageCmd)
	rootCmd.AddCommand(dumpMemoryCmd)
	rootCmd.AddCommand(verifySetupCmd)
}

// session is the resolved connection settings for one command.
type session struct {
	executor *gdb.Executor
	registry *config.Registry
	device   *config.Device
	loadBase uint32
}

func (s *session) target() string {
	cfg := s.executor.Config()
	t := fmt.Sprintf("%s:%d", cfg.OpenOCDHost, cfg.OpenOCDPort)
	if deviceName != "" {
		t = deviceName + " (" + t + ")"
	}
	return t
}

// touch records the device as used. Save errors are only logged.
func (s *session) touch() {
	if s.device == nil {
		return
	}
	s.registry.TouchDevice(deviceName)
	if err := s.registry.Save(); err != nil {
		logging.Warn("failed to save config", zap.Error(err))
	}
}

// newSession builds a GDB executor from the flags, falling back to the
// config file for every flag the user did not set.
func newSession(cmd *cobra.Command) (*session, error) {
	// Initialize logging from environment variable (silent by default)
	// Set WRITESEQ_LOG_LEVEL=debug to see detailed logs
	if err := logging.InitializeFromEnv(); err != nil {
		// Ignore error, GetLogger will create fallback logger
		_ = err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s := &session{registry: reg}

	flags := cmd.Flags()
	prefs := reg.Preferences

	if deviceName != "" {
		s.device = reg.GetDevice(deviceName)
		if s.device == nil {
			return nil, fmt.Errorf("unknown device %q (known: %s)", deviceName, strings.Join(reg.DeviceNames(), ", "))
		}
		if s.device.Transport != config.TransportJTAG {
			return nil, fmt.Errorf("device %q uses %s, not %s", deviceName, s.device.Transport, config.TransportJTAG)
		}
		s.loadBase = s.device.LoadBase
	}

	host, port := reg.Endpoint(s.device)
	if !flags.Changed("openocd-host") {
		openocdHost = host
	}
	if !flags.Changed("openocd-port") {
		openocdPort = port
	}
	if !flags.Changed("gdb-path") && prefs.GDBPath != "" {
		gdbPath = prefs.GDBPath
	}

	timeout := prefs.Timeout()
	if flags.Changed("timeout") || timeout == 0 {
		timeout, err = time.ParseDuration(gdbTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value: %w", err)
		}
	}

	cfg := gdb.Config{
		GDBPath:     gdbPath,
		OpenOCDHost: openocdHost,
		OpenOCDPort: openocdPort,
		Timeout:     timeout,
	}
	s.executor = gdb.NewExecutor(cfg, logging.Named("gdb"))
	return s, nil
}

// loadInput reads the block named on the command line.
func loadInput(path string) (*plan.Input, error) {
	layout, err := argblock.ParseLayout(wordSize, byteOrder)
	if err != nil {
		return nil, err
	}
	cat, err := plan.LoadCatalog()
	if err != nil {
		return nil, err
	}
	return plan.LoadInput(path, cat, layout)
}

func confirmWrites(target string, stores int) bool {
	if assumeYes {
		return true
	}
	return ui.MemoryWriteConfirmation(os.Stdin, os.Stdout, target, stores)
}

var connectionTips = []string{
	"Check GDB and OpenOCD setup: writeseq-jtag verify-setup",
	"Verify the target is halted and its RAM is accessible",
	"Run with WRITESEQ_LOG_LEVEL=debug for details",
}

// applyCmd implements the 'apply' command
var applyCmd = &cobra.Command{
	Use:   "apply <plan|image|block>",
	Short: "Replay a write sequence from the host",
	Long: `Replay an Argument Block on the target, one GDB store per operation.

This command will:
  1. Load the block (plan, image or raw block)
  2. Call the acknowledgment callback with (0, 0, 1) if the block has one
  3. Store every (address, value) pair in order
  4. Optionally read every touched address back (--verify)

Stores that have landed are not rolled back if the sequence stops part way;
the failure report says how many were written.`,
	Example: `  # Apply a plan, confirming interactively
  writeseq-jtag apply unlock.yaml

  # Apply a raw 64-bit big-endian block without prompting
  writeseq-jtag apply block.bin --word-size 8 --byte-order big --yes

  # Apply and read back, then let the target run
  writeseq-jtag apply unlock.yaml --verify --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	applyCmd.Flags().BoolVar(&resume, "resume", false, "Resume the target after the last store")
	applyCmd.Flags().BoolVar(&verifyAfter, "verify", false, "Read back every touched address (default from config)")
}

func runApply(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	in, err := loadInput(args[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("verify") {
		verifyAfter = s.registry.Preferences.Verify
	}

	if !confirmWrites(s.target(), len(in.Block.Ops)) {
		return fmt.Errorf("operation cancelled by user")
	}

	steps := []string{"Replay write sequence"}
	if verifyAfter {
		steps = append(steps, "Verify read-back")
	}
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Apply Write Sequence",
		Command: "writeseq-jtag apply",
		Params: map[string]string{
			"Device":   s.target(),
			"Input":    fmt.Sprintf("%s (%s)", in.Path, in.Kind),
			"Layout":   in.Layout.String(),
			"Stores":   fmt.Sprint(len(in.Block.Ops)),
			"Callback": callbackLabel(in.Block),
		},
		TotalSteps: len(steps),
		StepNames:  steps,
		Verbose:    gdbVerbose,
		Tips:       connectionTips,
	})

	ctx := context.Background()
	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		res, err := s.executor.Apply(ctx, in.Block, gdb.ApplyOptions{
			WordSize: in.Layout.WordSize,
			Resume:   resume,
		})
		if err != nil {
			var wsErr *gdb.WriteSequenceError
			if errors.As(err, &wsErr) {
				onStep(1, "", ui.StepFailed, fmt.Sprintf("%d of %d stores written", wsErr.Written, wsErr.Total))
			} else {
				onStep(1, "", ui.StepFailed, err.Error())
			}
			return nil, err
		}
		runner.SetRawOutput(res.Result.RawOutput)
		onStep(1, "", ui.StepComplete, fmt.Sprintf("%d stores", res.Report.Writes))

		details := map[string]string{
			"Stores":       fmt.Sprint(res.Report.Writes),
			"Acknowledged": fmt.Sprint(res.Report.Acknowledged),
			"GDB Time":     res.Result.Duration.Round(time.Millisecond).String(),
		}

		if verifyAfter {
			onStep(2, "", ui.StepRunning, "")
			v, err := s.executor.Verify(ctx, in.Block, in.Layout.WordSize)
			if err != nil {
				onStep(2, "", ui.StepFailed, "")
				return nil, err
			}
			onStep(2, "", ui.StepComplete, fmt.Sprintf("%v addresses match", v.GetData("verified")))
			details["Verified"] = "yes"
		}
		return details, nil
	})
	if err == nil {
		s.touch()
	}
	return err
}

// verifyCmd implements the 'verify' command
var verifyCmd = &cobra.Command{
	Use:   "verify <plan|image|block>",
	Short: "Check that a write sequence's final values are in memory",
	Long: `Read back every address the block stores to and compare it with the
last value stored there. Nothing is written.`,
	Example: `  writeseq-jtag verify unlock.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	in, err := loadInput(args[0])
	if err != nil {
		return err
	}
	addrs, _ := in.Block.FinalState()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Verify Write Sequence",
		Command: "writeseq-jtag verify",
		Params: map[string]string{
			"Device":    s.target(),
			"Input":     in.Path,
			"Addresses": fmt.Sprint(len(addrs)),
		},
		Verbose: gdbVerbose,
		Tips:    connectionTips,
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		res, err := s.executor.Verify(context.Background(), in.Block, in.Layout.WordSize)
		if res != nil {
			runner.SetRawOutput(res.RawOutput)
		}
		var vErr *gdb.VerifyError
		if errors.As(err, &vErr) {
			lines := make([]string, 0, len(vErr.Mismatches))
			for _, m := range vErr.Mismatches {
				lines = append(lines, m.String())
			}
			runner.SetRawOutput(strings.Join(lines, "\n"))
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"Addresses": fmt.Sprint(len(addrs))}, nil
	})
	return err
}

// loadImageCmd implements the 'load-image' command
var loadImageCmd = &cobra.Command{
	Use:   "load-image <plan|image|block>",
	Short: "Run the replay routine on the target CPU",
	Long: `Build the replay image (routine plus Argument Block), restore it into
target RAM and call its entry point from GDB.

The routine calls the acknowledgment callback first, performs every store
in order and returns with the caller's registers restored. The load
address must be word aligned and writable; it defaults to the device's
load base from the config file.`,
	Example: `  writeseq-jtag load-image unlock.yaml --base 0x20000000`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLoadImage,
}

func init() {
	loadImageCmd.Flags().StringVar(&loadBase, "base", "", "Load address (default from device config)")
	loadImageCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	loadImageCmd.Flags().BoolVar(&resume, "resume", false, "Resume the target after the routine returns")
}

func runLoadImage(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	in, err := loadInput(args[0])
	if err != nil {
		return err
	}

	base := s.loadBase
	if in.Plan != nil && in.Plan.LoadBase != 0 {
		base = uint32(in.Plan.LoadBase)
	}
	if loadBase != "" {
		n, err := plan.ParseNumber(loadBase)
		if err != nil || n > 0xFFFF_FFFF {
			return fmt.Errorf("invalid --base %q", loadBase)
		}
		base = uint32(n)
	}
	if base == 0 {
		return fmt.Errorf("no load address: pass --base or set load_base on the device")
	}

	if !confirmWrites(s.target(), len(in.Block.Ops)) {
		return fmt.Errorf("operation cancelled by user")
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Load Replay Image",
		Command: "writeseq-jtag load-image",
		Params: map[string]string{
			"Device":   s.target(),
			"Input":    in.Path,
			"Base":     fmt.Sprintf("0x%08x", base),
			"Stores":   fmt.Sprint(len(in.Block.Ops)),
			"Callback": callbackLabel(in.Block),
		},
		Verbose: gdbVerbose,
		Tips: append([]string{
			"The load address must be RAM the target can execute from",
		}, connectionTips...),
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		res, p, err := s.executor.LoadImage(context.Background(), in.Block, base, resume)
		if res != nil {
			runner.SetRawOutput(res.RawOutput)
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"Entry":       fmt.Sprintf("0x%08x", p.Entry()),
			"Block":       fmt.Sprintf("0x%08x", p.BlockAddress()),
			"Image Bytes": fmt.Sprint(p.Size),
		}, nil
	})
	if err == nil {
		s.touch()
	}
	return err
}

// dumpMemoryCmd implements the 'dump-memory' command
var dumpMemoryCmd = &cobra.Command{
	Use:   "dump-memory",
	Short: "Dump target memory to file",
	Long: `Dump a region of target memory to a binary file, for example to
capture registers before and after a write sequence.`,
	Example: `  # Dump 4 KB of SRAM
  writeseq-jtag dump-memory --address 0x20000000 --size 0x1000 --output sram.bin`,
	RunE: runDumpMemory,
}

func init() {
	dumpMemoryCmd.Flags().StringVar(&dumpAddress, "address", "", "Start address (required)")
	dumpMemoryCmd.Flags().StringVar(&dumpSize, "size", "", "Number of bytes (required)")
	dumpMemoryCmd.Flags().StringVar(&dumpOutput, "output", "", "Output file (required)")
	dumpMemoryCmd.MarkFlagRequired("address")
	dumpMemoryCmd.MarkFlagRequired("size")
	dumpMemoryCmd.MarkFlagRequired("output")
}

func runDumpMemory(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	addr, err := plan.ParseNumber(dumpAddress)
	if err != nil {
		return fmt.Errorf("invalid --address: %w", err)
	}
	size, err := plan.ParseNumber(dumpSize)
	if err != nil || size == 0 {
		return fmt.Errorf("invalid --size %q", dumpSize)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	if _, err := os.Stat(dumpOutput); err == nil {
		p.PrintWarning("Output file exists", map[string]string{
			"File":   dumpOutput,
			"Action": "Will be overwritten",
		})
		p.Newline()
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Memory Dump",
		Command: "writeseq-jtag dump-memory",
		Params: map[string]string{
			"Device":  s.target(),
			"Address": fmt.Sprintf("0x%08x - 0x%08x", uint64(addr), uint64(addr)+uint64(size)),
			"Size":    fmt.Sprintf("%d bytes", uint64(size)),
			"Output":  dumpOutput,
		},
		Verbose: gdbVerbose,
		Tips:    connectionTips,
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		res, err := s.executor.Dump(context.Background(), uint64(addr), int(size), dumpOutput)
		if res != nil {
			runner.SetRawOutput(res.RawOutput)
		}
		if err != nil {
			return nil, err
		}

		// GDB can report success without writing the whole region
		info, err := os.Stat(dumpOutput)
		if err != nil {
			return nil, fmt.Errorf("output file was not created: %w", err)
		}
		if info.Size() != int64(size) {
			return nil, fmt.Errorf("memory dump incomplete: expected %d bytes, got %d bytes", uint64(size), info.Size())
		}
		return map[string]string{
			"Output File": dumpOutput,
			"File Size":   fmt.Sprintf("%d bytes (verified)", info.Size()),
		}, nil
	})
	return err
}

// verifySetupCmd implements the 'verify-setup' command
var verifySetupCmd = &cobra.Command{
	Use:   "verify-setup",
	Short: "Verify GDB and OpenOCD setup",
	Long: `Verify that all prerequisites for JTAG operations are met.

This command checks:
  1. The GDB binary is installed and executable
  2. The OpenOCD GDB port accepts connections

Run this command first to troubleshoot any connection issues.`,
	Example: `  # Verify default setup
  writeseq-jtag verify-setup

  # Verify with custom settings
  writeseq-jtag verify-setup --openocd-host 192.168.1.100 --gdb-path /opt/gcc-arm/bin/arm-none-eabi-gdb`,
	RunE: runVerifySetup,
}

func runVerifySetup(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cfg := s.executor.Config()

	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Setup Verification", "writeseq-jtag verify-setup", map[string]string{
		"GDB Path":     cfg.GDBPath,
		"OpenOCD Host": fmt.Sprintf("%s:%d", cfg.OpenOCDHost, cfg.OpenOCDPort),
	})

	result, err := gdb.ValidatePrerequisites(context.Background(), cfg.GDBPath, cfg.OpenOCDHost, cfg.OpenOCDPort)
	if err != nil {
		return err
	}
	if gdbVerbose {
		p.PrintOutput("Prerequisites", gdb.FormatPrerequisiteReport(result))
		p.Newline()
	}

	var failed []string
	details := make(map[string]string)
	for _, c := range result.Checks {
		switch {
		case c.Available:
			status := "OK"
			if c.Version != "" {
				status += " (" + c.Version + ")"
			}
			details[c.Name] = status
		case c.Required:
			failed = append(failed, c.Name+": "+c.Message)
		default:
			details[c.Name] = "WARNING: " + c.Message
		}
	}

	if !result.AllAvailable {
		tips := append(failed,
			"Install an ARM GDB: brew install --cask gcc-arm-embedded (macOS)",
			"Or: apt install gdb-multiarch and pass --gdb-path gdb-multiarch (Linux)",
		)
		err := fmt.Errorf("%d required checks failed", len(failed))
		p.PrintError("Setup verification failed", err, tips)
		return err
	}

	p.PrintSuccess("Setup verified", details)
	return nil
}

func callbackLabel(b *argblock.Block) string {
	if b.Callback == 0 {
		return "none"
	}
	return b.Callback.Hex()
}
