package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/image"
	"github.com/muurk/writeseq/internal/logging"
	"github.com/muurk/writeseq/internal/plan"
	"github.com/muurk/writeseq/internal/sim"
	"github.com/muurk/writeseq/internal/stub"
	"github.com/muurk/writeseq/internal/ui"
)

// Command flags
var (
	wordSize  int
	byteOrder string

	buildOutput string
	buildFormat string

	outputFormat string

	simBase     string
	simStackTop string
	simTrace    bool
)

func init() {
	for _, c := range []*cobra.Command{buildCmd, inspectCmd, simulateCmd} {
		c.Flags().IntVar(&wordSize, "word-size", 4, "Word size of raw block files (4 or 8)")
		c.Flags().StringVar(&byteOrder, "byte-order", "little", "Byte order of raw block files (little or big)")
	}

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(socsCmd)
}

// loadInput reads a plan, image or raw block.
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

// buildCmd implements the 'build' command
var buildCmd = &cobra.Command{
	Use:   "build <plan|image|block>",
	Short: "Encode a plan as a loadable image or a raw block",
	Long: `Expand the input into an Argument Block and write it out.

Formats:
  image  the replay routine followed by the block (32-bit little-endian),
         ready to be loaded anywhere in RAM and called at offset 0
  block  the encoded block alone, in the plan's word size and byte order

When the plan names a SoC and a load base, the image is checked against
the SoC's SRAM.`,
	Example: `  writeseq build unlock.yaml -o unlock.bin
  writeseq build unlock.yaml -o unlock.blk --format block`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output file (required)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "image", "Output format (image, block)")
	buildCmd.MarkFlagRequired("output")
}

func runBuild(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	in, err := loadInput(args[0])
	if err != nil {
		return err
	}

	var data []byte
	details := map[string]string{
		"Stores": fmt.Sprint(len(in.Block.Ops)),
		"Output": buildOutput,
	}

	switch buildFormat {
	case "image":
		data, err = image.Build(in.Block)
		if err != nil {
			return err
		}
		details["Layout"] = stub.Layout.String()
		details["Block Offset"] = fmt.Sprintf("0x%x", stub.BlockOffset)
		if err := checkPlacement(in, len(data), details); err != nil {
			return err
		}
	case "block":
		data, err = in.Layout.Encode(in.Block)
		if err != nil {
			return err
		}
		details["Layout"] = in.Layout.String()
	default:
		return fmt.Errorf("unknown format %q (want image or block)", buildFormat)
	}

	if err := os.WriteFile(buildOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", buildOutput, err)
	}
	details["Size"] = fmt.Sprintf("%d bytes", len(data))

	ui.NewPrinter(os.Stdout).PrintSuccess("Build complete", details)
	return nil
}

// checkPlacement validates a plan's load base against its SoC's SRAM.
func checkPlacement(in *plan.Input, size int, details map[string]string) error {
	if in.Plan == nil || in.Plan.SoC == "" {
		return nil
	}
	cat, err := plan.LoadCatalog()
	if err != nil {
		return err
	}
	soc, err := in.Plan.Resolve(cat)
	if err != nil {
		return err
	}
	base := uint32(in.Plan.LoadBase)
	if base == 0 {
		base = uint32(soc.SRAM.Base)
	}
	p := image.Placement{Base: base, Size: size}
	if err := p.Check(uint32(soc.SRAM.Base), uint32(soc.SRAM.Size)); err != nil {
		return fmt.Errorf("image does not fit %s SRAM: %w", soc.Name, err)
	}
	details["Entry"] = fmt.Sprintf("0x%08x", p.Entry())
	return nil
}

// blockDoc is the JSON form of a block.
type blockDoc struct {
	Callback string   `json:"callback"`
	Layout   string   `json:"layout"`
	Ops      []opDoc  `json:"ops"`
	Final    []opDoc  `json:"final"`
	Source   string   `json:"source"`
	Patches  []string `json:"patches,omitempty"`
}

type opDoc struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// inspectCmd implements the 'inspect' command
var inspectCmd = &cobra.Command{
	Use:   "inspect <plan|image|block>",
	Short: "Show the stores a block performs",
	Long: `Decode the input and list its callback and stores in replay order.

Formats:
  table  human readable listing (default)
  yaml   a plan that reproduces the block
  json   the block plus the final value of every touched address`,
	Example: `  writeseq inspect unlock.bin
  writeseq inspect dump.blk --word-size 8 --byte-order big --format yaml > plan.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, yaml, json)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	in, err := loadInput(args[0])
	if err != nil {
		return err
	}

	switch outputFormat {
	case "table":
		p := ui.NewPrinter(os.Stdout)
		p.PrintHeader("Argument Block", "writeseq inspect", map[string]string{
			"Input":  in.Path,
			"Source": string(in.Kind),
		})
		p.Println(ui.RenderBlock(in.Block, in.Layout))
		return nil

	case "yaml":
		doc := plan.FromBlock(in.Block, in.Layout)
		if in.Plan != nil {
			doc.Name = in.Plan.Name
			doc.Description = in.Plan.Description
		}
		data, err := doc.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "json":
		doc := blockDoc{
			Callback: in.Block.Callback.Hex(),
			Layout:   in.Layout.String(),
			Ops:      make([]opDoc, 0, len(in.Block.Ops)),
			Source:   string(in.Kind),
		}
		if in.Plan != nil {
			doc.Patches = in.Plan.Patches
		}
		for _, op := range in.Block.Ops {
			doc.Ops = append(doc.Ops, opDoc{Address: op.Address.Hex(), Value: op.Value.Hex()})
		}
		addrs, final := in.Block.FinalState()
		for _, a := range addrs {
			doc.Final = append(doc.Final, opDoc{Address: a.Hex(), Value: final[a].Hex()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	default:
		return fmt.Errorf("unknown format %q (want table, yaml or json)", outputFormat)
	}
}

// disasmCmd implements the 'disasm' command
var disasmCmd = &cobra.Command{
	Use:   "disasm [image]",
	Short: "Disassemble the replay routine",
	Long: `Disassemble the replay routine, or the code part of a built image
followed by its block.`,
	Example: `  writeseq disasm
  writeseq disasm unlock.bin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDisasm,
}

func runDisasm(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	code := stub.Code()
	var block *argblock.Block
	if len(args) == 1 {
		img, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if block, err = image.Decode(img); err != nil {
			return err
		}
		code = img[:stub.BlockOffset]
	}

	var sb strings.Builder
	err := stub.Disassemble(code, func(l stub.Line) error {
		sb.WriteString(l.String())
		sb.WriteString("\n")
		return nil
	})
	if err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintOutput(fmt.Sprintf("Replay routine (%d bytes, block at +0x%x)", len(code), stub.BlockOffset), strings.TrimRight(sb.String(), "\n"))
	if block != nil {
		p.Newline()
		p.Println(ui.RenderBlock(block, stub.Layout))
	}
	return nil
}

// simulateCmd implements the 'simulate' command
var simulateCmd = &cobra.Command{
	Use:   "simulate <plan|image|block>",
	Short: "Run the replay routine on a simulated ARM core",
	Long: `Load the replay image into a simulated ARM core, call it, and run the
same block through the Go executor on an identical machine.

The two runs must agree: one acknowledgment call with (0, 0, 1) when the
block has a callback, the same final value at every touched address, and
every callee-saved register restored by the routine.`,
	Example: `  writeseq simulate unlock.yaml
  writeseq simulate unlock.bin --trace`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simBase, "base", "", "Image load address")
	simulateCmd.Flags().StringVar(&simStackTop, "stack-top", "", "Initial stack pointer")
	simulateCmd.Flags().BoolVar(&simTrace, "trace", false, "Print every instruction executed")
}

func parseWord32(name, s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	n, err := plan.ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	if n > 0xFFFF_FFFF {
		return 0, fmt.Errorf("invalid --%s: %s does not fit in 32 bits", name, s)
	}
	return uint32(n), nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	in, err := loadInput(args[0])
	if err != nil {
		return err
	}
	base, err := parseWord32("base", simBase)
	if err != nil {
		return err
	}
	stackTop, err := parseWord32("stack-top", simStackTop)
	if err != nil {
		return err
	}

	setup := sim.Setup{
		Base:     base,
		StackTop: stackTop,
		Options:  []sim.Option{sim.WithLogger(logging.Named("sim"))},
	}
	var trace strings.Builder
	if simTrace {
		setup.Options = append(setup.Options, sim.WithTrace(func(pc, inst uint32) {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], inst)
			text := "?"
			_ = stub.Disassemble(b[:], func(l stub.Line) error {
				text = l.Text
				return nil
			})
			fmt.Fprintf(&trace, "%08x:  %08x  %s\n", pc, inst, text)
		}))
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Simulation",
		Command: "writeseq simulate",
		Params: map[string]string{
			"Input":  in.Path,
			"Stores": fmt.Sprint(len(in.Block.Ops)),
		},
		TotalSteps: 3,
		StepNames:  []string{"Run replay routine", "Run Go executor", "Compare"},
		Verbose:    simTrace,
		OutputName: "Instruction Trace",
		Tips: []string{
			"Only 32-bit addresses and values can run on the routine",
			"The load base and stack must not overlap stored addresses",
		},
	})

	_, err = runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		native, err := sim.Replay(in.Block, setup)
		runner.SetRawOutput(strings.TrimRight(trace.String(), "\n"))
		if err != nil {
			onStep(1, "", ui.StepFailed, err.Error())
			return nil, err
		}
		onStep(1, "", ui.StepComplete, fmt.Sprintf("%d instructions", native.Steps))

		onStep(2, "", ui.StepRunning, "")
		hostedSetup := setup
		hostedSetup.Options = []sim.Option{sim.WithLogger(logging.Named("sim"))}
		hosted, err := sim.ReplayHosted(in.Block, hostedSetup, logging.Named("executor"))
		if err != nil {
			onStep(2, "", ui.StepFailed, err.Error())
			return nil, err
		}
		onStep(2, "", ui.StepComplete, "")

		onStep(3, "", ui.StepRunning, "")
		diffs := sim.Compare(hosted, native)
		if len(native.Clobbered) > 0 {
			onStep(3, "", ui.StepFailed, "registers clobbered")
			return nil, fmt.Errorf("routine did not restore registers %v", native.Clobbered)
		}
		if len(diffs) > 0 {
			lines := make([]string, 0, len(diffs))
			for _, d := range diffs {
				lines = append(lines, fmt.Sprintf("%s: executor %s, routine %s", d.What, d.Want, d.Got))
			}
			onStep(3, "", ui.StepFailed, fmt.Sprintf("%d differences", len(diffs)))
			return nil, fmt.Errorf("executor and routine disagree:\n%s", strings.Join(lines, "\n"))
		}
		onStep(3, "", ui.StepComplete, "identical")

		return map[string]string{
			"Acknowledgments": fmt.Sprint(len(native.Acks)),
			"Addresses":       fmt.Sprint(len(native.Addresses)),
			"Instructions":    fmt.Sprint(native.Steps),
		}, nil
	})
	return err
}

// socsCmd implements the 'socs' command
var socsCmd = &cobra.Command{
	Use:   "socs [name]",
	Short: "List SoC profiles or show one",
	Example: `  writeseq socs
  writeseq socs mt6735`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSoCs,
}

func runSoCs(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cat, err := plan.LoadCatalog()
	if err != nil {
		return err
	}
	p := ui.NewPrinter(os.Stdout)

	if len(args) == 0 {
		var sb strings.Builder
		for _, soc := range cat.SoCs {
			sb.WriteString(soc.String())
			sb.WriteString("\n")
		}
		p.PrintOutput("SoC Profiles", strings.TrimRight(sb.String(), "\n"))
		return nil
	}

	soc, err := cat.Lookup(args[0])
	if err != nil {
		return err
	}
	p.PrintOutput(soc.String(), soc.FormatMemoryMap())
	for _, name := range soc.PatchSetNames() {
		block := &argblock.Block{}
		for _, o := range soc.PatchSets[name] {
			block.Ops = append(block.Ops, o.Op())
		}
		p.Newline()
		p.Println(ui.HeaderTitleStyle.Render("Patch set: " + name))
		p.Println(ui.RenderBlock(block, stub.Layout))
	}
	return nil
}
