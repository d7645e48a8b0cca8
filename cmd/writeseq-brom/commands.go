package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/config"
	"github.com/muurk/writeseq/internal/executor"
	"github.com/muurk/writeseq/internal/logging"
	"github.com/muurk/writeseq/internal/plan"
	"github.com/muurk/writeseq/internal/ui"
	"github.com/muurk/writeseq/internal/usbdl"
)

// Command flags
var (
	portPath   string
	ioTimeout  time.Duration
	socName    string
	deviceName string
	useCQDMA   bool
	assumeYes  bool

	dropCallback bool
	injectBase   string
	uart1Log     bool

	dumpAddress string
	dumpSize    string
	dumpRegion  string
	dumpOutput  string
	dumpChunk   int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&portPath, "port", "p", "", "Serial device of the boot ROM, e.g. /dev/ttyACM0")
	rootCmd.PersistentFlags().DurationVar(&ioTimeout, "timeout", usbdl.DefaultTimeout, "Read timeout per transfer")
	rootCmd.PersistentFlags().StringVar(&socName, "soc", "", "SoC profile name (skips detection)")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Named device from the config file")
	rootCmd.PersistentFlags().BoolVar(&useCQDMA, "cqdma", false, "Access memory through the CQDMA engine")

	for _, c := range []*cobra.Command{applyCmd, injectCmd, write32Cmd, unlockCmd} {
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	}

	rootCmd.AddCommand(hwInfoCmd)
	rootCmd.AddCommand(read32Cmd)
	rootCmd.AddCommand(write32Cmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(c8Cmd)
	rootCmd.AddCommand(unlockCmd)
}

// link is an open boot ROM connection.
type link struct {
	port     *usbdl.Port
	client   *usbdl.Client
	registry *config.Registry
	device   *config.Device
}

func (l *link) Close() {
	if err := l.port.Close(); err != nil {
		logging.Warn("failed to close port", zap.Error(err))
	}
}

func (l *link) target() string {
	t := portPath
	if soc := l.client.SoC(); soc != nil {
		t += " (" + strings.ToUpper(soc.Name) + ")"
	}
	return t
}

// touch records the device as used. Save errors are only logged.
func (l *link) touch() {
	if l.device == nil {
		return
	}
	l.registry.TouchDevice(deviceName)
	if err := l.registry.Save(); err != nil {
		logging.Warn("failed to save config", zap.Error(err))
	}
}

// connect opens the port and identifies the SoC, taking the port and SoC
// from the named device when the flags leave them unset.
func connect(cmd *cobra.Command) (*link, error) {
	// Initialize logging from environment variable (silent by default)
	// Set WRITESEQ_LOG_LEVEL=debug to see the wire traffic
	if err := logging.InitializeFromEnv(); err != nil {
		_ = err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	l := &link{registry: reg}

	if deviceName != "" {
		l.device = reg.GetDevice(deviceName)
		if l.device == nil {
			return nil, fmt.Errorf("unknown device %q (known: %s)", deviceName, strings.Join(reg.DeviceNames(), ", "))
		}
		if l.device.Transport != config.TransportBROM {
			return nil, fmt.Errorf("device %q uses %s, not %s", deviceName, l.device.Transport, config.TransportBROM)
		}
		if !cmd.Flags().Changed("port") {
			portPath = l.device.Port
		}
		if !cmd.Flags().Changed("soc") {
			socName = l.device.SoC
		}
	}
	if portPath == "" {
		return nil, fmt.Errorf("no serial port: pass --port or --device")
	}

	cat, err := plan.LoadCatalog()
	if err != nil {
		return nil, err
	}

	port, err := usbdl.OpenPort(portPath, ioTimeout)
	if err != nil {
		return nil, err
	}
	l.port = port

	var opts []usbdl.Option
	if socName != "" {
		soc, err := cat.Lookup(socName)
		if err != nil {
			port.Close()
			return nil, err
		}
		opts = append(opts, usbdl.WithSoC(soc))
	}
	l.client = usbdl.New(port, logging.Named("usbdl"), opts...)

	if l.client.SoC() == nil {
		if _, err := l.client.Detect(cat); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to identify SoC: %w", err)
		}
	}
	return l, nil
}

func confirmWrites(target string, stores int) bool {
	if assumeYes {
		return true
	}
	return ui.MemoryWriteConfirmation(os.Stdin, os.Stdout, target, stores)
}

func parseAddress(s string) (uint32, error) {
	n, err := plan.ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if n > 0xFFFF_FFFF {
		return 0, fmt.Errorf("%s does not fit in 32 bits", s)
	}
	return uint32(n), nil
}

var bromTips = []string{
	"Hold the SoC in download mode while connecting",
	"Run 'writeseq-brom unlock' or retry with --cqdma if the boot ROM rejects the address range",
	"Run with WRITESEQ_LOG_LEVEL=debug to see the wire traffic",
}

// hwInfoCmd implements the 'hw-info' command
var hwInfoCmd = &cobra.Command{
	Use:   "hw-info",
	Short: "Identify the SoC and show its security configuration",
	Long: `Read the hardware code, hardware/software versions and target
configuration from the boot ROM, and show the matching SoC profile.`,
	Example: `  writeseq-brom hw-info --port /dev/ttyACM0
  writeseq-brom hw-info -d phone --uart1-log`,
	RunE: runHWInfo,
}

func init() {
	hwInfoCmd.Flags().BoolVar(&uart1Log, "uart1-log", false, "Switch boot ROM logging to UART1")
}

func runHWInfo(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Hardware Info", "writeseq-brom hw-info", map[string]string{
		"Port": portPath,
	})

	ver, err := l.client.HWSWVersion()
	if err != nil {
		p.PrintError("Hardware query failed", err, bromTips)
		return err
	}
	tc, err := l.client.TargetConfig()
	if err != nil {
		p.PrintError("Hardware query failed", err, bromTips)
		return err
	}
	if uart1Log {
		if err := l.client.UART1LogEnable(); err != nil {
			p.PrintError("UART1 log enable failed", err, bromTips)
			return err
		}
	}

	soc := l.client.SoC()
	p.PrintSuccess("SoC identified", map[string]string{
		"SoC":           soc.String(),
		"HW Subcode":    fmt.Sprintf("0x%04x", ver.HWSubcode),
		"HW Version":    fmt.Sprintf("0x%04x", ver.HWVersion),
		"SW Version":    fmt.Sprintf("0x%04x", ver.SWVersion),
		"Target Config": tc.String(),
		"Patch Sets":    strings.Join(soc.PatchSetNames(), ", "),
	})
	p.Newline()
	p.PrintOutput(strings.ToUpper(soc.Name), soc.FormatMemoryMap())

	if tc.SLA() || tc.DAA() {
		p.Newline()
		p.PrintWarning("Authentication enabled", map[string]string{
			"Effect": "WRITE32 may be refused outside the boot ROM's allow list; run unlock or use --cqdma",
		})
	}
	l.touch()
	return nil
}

// read32Cmd implements the 'read32' command
var read32Cmd = &cobra.Command{
	Use:   "read32 <address> [count]",
	Short: "Read 32-bit words",
	Example: `  writeseq-brom read32 0x10007000
  writeseq-brom read32 0x10007000 4 --cqdma`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRead32,
}

func runRead32(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	addr, err := parseAddress(args[0])
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	count := uint32(1)
	if len(args) == 2 {
		n, err := parseAddress(args[1])
		if err != nil || n == 0 {
			return fmt.Errorf("invalid count %q", args[1])
		}
		count = n
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	var words []uint32
	if useCQDMA {
		words, err = l.client.CQDMARead32(addr, count)
	} else {
		words, err = l.client.Read32(addr, count)
	}
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("%-10s  %-10s", "ADDRESS", "VALUE")))
	sb.WriteString("\n")
	for i, w := range words {
		sb.WriteString(ui.TableAddressStyle.Render(fmt.Sprintf("0x%08x", addr+uint32(4*i))))
		sb.WriteString(fmt.Sprintf("  0x%08x\n", w))
	}
	return ui.RenderOnce(os.Stdout, sb.String())
}

// write32Cmd implements the 'write32' command
var write32Cmd = &cobra.Command{
	Use:     "write32 <address> <value>...",
	Short:   "Write consecutive 32-bit words",
	Example: `  writeseq-brom write32 0x10007000 0x22000000`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runWrite32,
}

func runWrite32(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	addr, err := parseAddress(args[0])
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	words := make([]uint32, 0, len(args)-1)
	for _, a := range args[1:] {
		w, err := parseAddress(a)
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}
		words = append(words, w)
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	if !confirmWrites(l.target(), len(words)) {
		return fmt.Errorf("operation cancelled by user")
	}

	if useCQDMA {
		err = l.client.CQDMAWrite32(addr, words...)
	} else {
		err = l.client.Write32(addr, words...)
	}
	if err != nil {
		return err
	}
	ui.NewPrinter(os.Stdout).PrintSuccess("Write complete", map[string]string{
		"Address": fmt.Sprintf("0x%08x", addr),
		"Words":   fmt.Sprint(len(words)),
	})
	return nil
}

// applyCmd implements the 'apply' command
var applyCmd = &cobra.Command{
	Use:   "apply <plan|image|block>",
	Short: "Replay a write sequence from the host",
	Long: `Replay an Argument Block's stores in order over the boot ROM protocol.

The boot ROM cannot call a function for the host, so a block with an
acknowledgment callback is refused unless --drop-callback is given. Use
'inject' to run the callback on the SoC.

Stores to the SoC's bounds_check words always go through CQDMA, since
WRITE32 cannot reach them; the rest use WRITE32 unless --cqdma is set.

Raw block files must use the 32-bit little-endian layout.`,
	Example: `  writeseq-brom apply unlock.yaml
  writeseq-brom apply unlock.yaml --drop-callback --cqdma -y`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&dropCallback, "drop-callback", false, "Replay the stores without the acknowledgment call")
}

func runApply(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cat, err := plan.LoadCatalog()
	if err != nil {
		return err
	}
	in, err := plan.LoadInput(args[0], cat, argblock.Layout32LE)
	if err != nil {
		return err
	}
	block := in.Block
	if block.Callback != 0 {
		if !dropCallback {
			return fmt.Errorf("block has callback %s and the boot ROM cannot call it: use --drop-callback or inject", block.Callback.Hex())
		}
		block = block.Clone()
		block.Callback = 0
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	if !confirmWrites(l.target(), len(block.Ops)) {
		return fmt.Errorf("operation cancelled by user")
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Apply Write Sequence",
		Command: "writeseq-brom apply",
		Params: map[string]string{
			"Device": l.target(),
			"Input":  fmt.Sprintf("%s (%s)", in.Path, in.Kind),
			"Stores": fmt.Sprint(len(block.Ops)),
			"CQDMA":  fmt.Sprint(useCQDMA),
		},
		Tips: bromTips,
	})
	counter := runner.Counter("", "stores", len(block.Ops))
	out := runner.Writer()

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		exec := executor.New(l.client.Target(useCQDMA), logging.Named("executor"),
			executor.WithHooks(executor.Hooks{
				OnWrite: func(index argblock.Word, op argblock.Op) {
					fmt.Fprint(out, counter.Set(int(index)+1)+"\r")
				},
			}))
		report, err := exec.Run(block)
		fmt.Fprintln(out, counter.Render())
		if err != nil {
			var fault *executor.FaultError
			if errors.As(err, &fault) {
				return nil, fmt.Errorf("%w (%d of %d stores landed and stay applied)", err, counter.Done, len(block.Ops))
			}
			return nil, err
		}
		return map[string]string{
			"Stores":    fmt.Sprint(report.Writes),
			"Wire Time": report.Duration.Round(time.Millisecond).String(),
		}, nil
	})
	if err == nil {
		l.touch()
	}
	return err
}

// injectCmd implements the 'inject' command
var injectCmd = &cobra.Command{
	Use:   "inject <plan|image|block>",
	Short: "Load the replay routine into SRAM and jump to it",
	Long: `Build the replay image (routine plus Argument Block), write it into SRAM
and start it with JUMP_DA.

The routine runs on the SoC: it calls the acknowledgment callback with
(0, 0, 1), performs every store in order and returns into the boot ROM.
The load address defaults to the device's load base or the start of the
SoC's SRAM.`,
	Example: `  writeseq-brom inject unlock.yaml
  writeseq-brom inject unlock.yaml --base 0x00201000`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

func init() {
	injectCmd.Flags().StringVar(&injectBase, "base", "", "Load address inside SRAM")
}

func runInject(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cat, err := plan.LoadCatalog()
	if err != nil {
		return err
	}
	in, err := plan.LoadInput(args[0], cat, argblock.Layout32LE)
	if err != nil {
		return err
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	var base uint32
	if l.device != nil {
		base = l.device.LoadBase
	}
	if in.Plan != nil && in.Plan.LoadBase != 0 {
		base = uint32(in.Plan.LoadBase)
	}
	if injectBase != "" {
		if base, err = parseAddress(injectBase); err != nil {
			return fmt.Errorf("invalid --base: %w", err)
		}
	}

	if !confirmWrites(l.target(), len(in.Block.Ops)) {
		return fmt.Errorf("operation cancelled by user")
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Inject Replay Image",
		Command: "writeseq-brom inject",
		Params: map[string]string{
			"Device": l.target(),
			"Input":  in.Path,
			"Stores": fmt.Sprint(len(in.Block.Ops)),
		},
		Tips: append([]string{"The image must fit inside the SoC's SRAM"}, bromTips...),
	})
	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		p, err := l.client.Inject(in.Block, base)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"Base":        fmt.Sprintf("0x%08x", p.Base),
			"Entry":       fmt.Sprintf("0x%08x", p.Entry()),
			"Image Bytes": fmt.Sprint(p.Size),
		}, nil
	})
	if err == nil {
		l.touch()
	}
	return err
}

// dumpCmd implements the 'dump' command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump memory to a file",
	Long: `Read memory into a file, either a raw range (--address and --size) or a
named region of the SoC profile (--region brom|efuse|sram|l2_sram).

For a region the output defaults to <soc>-<region>.bin.`,
	Example: `  # Dump the eFuses, then the boot ROM after clearing the bounds check
  writeseq-brom dump --region efuse
  writeseq-brom unlock -y && writeseq-brom dump --region brom

  # Raw range through CQDMA
  writeseq-brom dump --address 0 --size 0x400 --output brom-0.bin --cqdma`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpAddress, "address", "", "Start address")
	dumpCmd.Flags().StringVar(&dumpSize, "size", "", "Number of bytes")
	dumpCmd.Flags().StringVar(&dumpRegion, "region", "", "Named region: "+strings.Join(plan.RegionNames, ", "))
	dumpCmd.Flags().StringVar(&dumpOutput, "output", "", "Output file (required with --address)")
	dumpCmd.Flags().IntVar(&dumpChunk, "chunk", usbdl.DumpChunk, "Bytes per transfer")
	dumpCmd.MarkFlagsMutuallyExclusive("region", "address")
	dumpCmd.MarkFlagsMutuallyExclusive("region", "size")
	dumpCmd.MarkFlagsRequiredTogether("address", "size")
	dumpCmd.MarkFlagsOneRequired("region", "address")
}

func runDump(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var addr, size uint32
	if dumpRegion == "" {
		var err error
		if addr, err = parseAddress(dumpAddress); err != nil {
			return fmt.Errorf("invalid --address: %w", err)
		}
		size, err = parseAddress(dumpSize)
		if err != nil || size == 0 {
			return fmt.Errorf("invalid --size %q", dumpSize)
		}
		if dumpOutput == "" {
			return fmt.Errorf("--output is required with --address")
		}
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	if dumpRegion != "" {
		soc := l.client.SoC()
		r, err := soc.Region(dumpRegion)
		if err != nil {
			return err
		}
		if r.Size == 0 || r.End() > 1<<32 {
			return fmt.Errorf("%s has no usable %s region", soc.Name, dumpRegion)
		}
		addr, size = uint32(r.Base), uint32(r.Size)
		if dumpOutput == "" {
			dumpOutput = fmt.Sprintf("%s-%s.bin", soc.Name, strings.ToLower(dumpRegion))
		}
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Memory Dump",
		Command: "writeseq-brom dump",
		Params: map[string]string{
			"Device":  l.target(),
			"Address": fmt.Sprintf("0x%08x - 0x%08x", addr, uint64(addr)+uint64(size)),
			"Region":  dumpRegion,
			"Output":  dumpOutput,
		},
		Tips: bromTips,
	})
	counter := runner.Counter("", "bytes", int(size))
	out := runner.Writer()

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		data, err := l.client.Dump(addr, int(size), dumpChunk, useCQDMA, func(done, total int) {
			fmt.Fprint(out, counter.Set(done)+"\r")
		})
		fmt.Fprintln(out, counter.Render())
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(dumpOutput, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", dumpOutput, err)
		}
		return map[string]string{
			"Output File": dumpOutput,
			"File Size":   fmt.Sprintf("%d bytes", len(data)),
		}, nil
	})
	return err
}

// c8Cmd implements the 'c8' command
var c8Cmd = &cobra.Command{
	Use:   "c8 [sub-command]",
	Short: "Run a C8 sub-command (default B1, disable caches)",
	Long: `Send the boot ROM's C8 command. Sub-command B1 disables the caches,
which the boot ROM needs before code written over USB is executed.
Accepted sub-commands are B0-BA and C0-CC, in hex.`,
	Example: `  writeseq-brom c8
  writeseq-brom c8 B5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runC8,
}

func runC8(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	sub := usbdl.C8DisableCaches
	if len(args) == 1 {
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[0]), "0x"), 16, 8)
		if err != nil || !usbdl.ValidC8(byte(n)) {
			return fmt.Errorf("invalid C8 sub-command %q", args[0])
		}
		sub = byte(n)
	}

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	var data byte
	if sub == usbdl.C8DisableCaches {
		err = l.client.DisableCaches()
	} else {
		data, err = l.client.C8(sub)
	}
	if err != nil {
		return err
	}
	ui.NewPrinter(os.Stdout).PrintSuccess("C8 complete", map[string]string{
		"Device":      l.target(),
		"Sub-command": fmt.Sprintf("0x%02X", sub),
		"Data":        fmt.Sprintf("0x%02X", data),
	})
	l.touch()
	return nil
}

// unlockCmd implements the 'unlock' command
var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear the boot ROM bounds check through CQDMA",
	Long: `Write the SoC's bounds_check patch set through the CQDMA engine. Until
the device resets, READ32 and WRITE32 then reach memory the boot ROM
would otherwise refuse, so --cqdma is no longer needed.`,
	Example: `  writeseq-brom unlock --port /dev/ttyACM0 -y`,
	Args:    cobra.NoArgs,
	RunE:    runUnlock,
}

func runUnlock(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	l, err := connect(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	soc := l.client.SoC()
	if !confirmWrites(l.target(), len(soc.PatchSets[plan.PatchBoundsCheck])) {
		return fmt.Errorf("operation cancelled by user")
	}

	n, err := l.client.Unlock()
	if err != nil {
		ui.NewPrinter(os.Stdout).PrintError("Unlock failed", fmt.Errorf("%w (%d words written)", err, n), bromTips)
		return err
	}
	ui.NewPrinter(os.Stdout).PrintSuccess("Bounds check cleared", map[string]string{
		"Device": l.target(),
		"Words":  fmt.Sprint(n),
		"Next":   "READ32/WRITE32 now reach protected memory until reset",
	})
	l.touch()
	return nil
}
