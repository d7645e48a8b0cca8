package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/writeseq/internal/config"
	"github.com/muurk/writeseq/internal/plan"
	"github.com/muurk/writeseq/internal/ui"
)

var (
	devTransport   string
	devPort        string
	devSoC         string
	devOpenOCDHost string
	devOpenOCDPort int
	devLoadBase    string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage named devices and preferences",
	Long: `Manage the writeseq config file shared by writeseq-jtag and
writeseq-brom. Without a subcommand the current config is shown.`,
	RunE: runConfigShow,
}

var deviceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a named device",
	Example: `  writeseq config add board --transport jtag --openocd-host 192.168.1.100 --load-base 0x20000000
  writeseq config add phone --transport brom --port /dev/ttyACM0 --soc mt6735`,
	Args: cobra.ExactArgs(1),
	RunE: runDeviceAdd,
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceRemove,
}

var prefSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Long: `Set a preference. Keys:
  gdb-path      GDB binary used by writeseq-jtag
  openocd-host  default OpenOCD host
  openocd-port  default OpenOCD GDB port
  timeout       GDB run timeout in seconds
  verify        read back after every JTAG apply (true or false)`,
	Args: cobra.ExactArgs(2),
	RunE: runPrefSet,
}

func init() {
	deviceAddCmd.Flags().StringVar(&devTransport, "transport", config.TransportJTAG, "jtag or brom")
	deviceAddCmd.Flags().StringVar(&devPort, "port", "", "Serial device (brom)")
	deviceAddCmd.Flags().StringVar(&devSoC, "soc", "", "SoC profile name")
	deviceAddCmd.Flags().StringVar(&devOpenOCDHost, "openocd-host", "", "OpenOCD host (jtag)")
	deviceAddCmd.Flags().IntVar(&devOpenOCDPort, "openocd-port", 0, "OpenOCD port (jtag)")
	deviceAddCmd.Flags().StringVar(&devLoadBase, "load-base", "", "Image load address")

	configCmd.AddCommand(deviceAddCmd)
	configCmd.AddCommand(deviceRemoveCmd)
	configCmd.AddCommand(prefSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	path, _ := config.GetConfigPath()
	prefs := reg.Preferences

	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Configuration", "writeseq config", map[string]string{
		"File":         path,
		"GDB Path":     prefs.GDBPath,
		"OpenOCD":      fmt.Sprintf("%s:%d", prefs.OpenOCDHost, prefs.OpenOCDPort),
		"GDB Timeout":  prefs.Timeout().String(),
		"Verify Apply": strconv.FormatBool(prefs.Verify),
	})

	names := reg.DeviceNames()
	if len(names) == 0 {
		p.Println("  No devices. Add one with: writeseq config add <name>")
		return nil
	}

	var sb strings.Builder
	for _, name := range names {
		d := reg.GetDevice(name)
		var where string
		if d.Transport == config.TransportBROM {
			where = d.Port
		} else {
			host, port := reg.Endpoint(d)
			where = fmt.Sprintf("%s:%d", host, port)
		}
		fmt.Fprintf(&sb, "%-12s %-5s %-22s", name, d.Transport, where)
		if d.SoC != "" {
			fmt.Fprintf(&sb, " soc=%s", d.SoC)
		}
		if d.LoadBase != 0 {
			fmt.Fprintf(&sb, " load_base=0x%08x", d.LoadBase)
		}
		if !d.LastUsed.IsZero() {
			fmt.Fprintf(&sb, " last_used=%s", d.LastUsed.Format("2006-01-02 15:04"))
		}
		sb.WriteString("\n")
	}
	p.PrintOutput("Devices", strings.TrimRight(sb.String(), "\n"))
	return nil
}

func runDeviceAdd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	d := &config.Device{
		Transport:   devTransport,
		SoC:         devSoC,
		Port:        devPort,
		OpenOCDHost: devOpenOCDHost,
		OpenOCDPort: devOpenOCDPort,
	}
	if devSoC != "" {
		cat, err := plan.LoadCatalog()
		if err != nil {
			return err
		}
		soc, err := cat.Lookup(devSoC)
		if err != nil {
			return err
		}
		d.SoC = soc.Name
	}
	if devLoadBase != "" {
		if d.LoadBase, err = parseWord32("load-base", devLoadBase); err != nil {
			return err
		}
	}

	if err := reg.SetDevice(args[0], d); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}
	ui.NewPrinter(os.Stdout).PrintSuccess("Device saved", map[string]string{
		"Name":      args[0],
		"Transport": d.Transport,
	})
	return nil
}

func runDeviceRemove(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	if !reg.RemoveDevice(args[0]) {
		return fmt.Errorf("no device named %q", args[0])
	}
	return reg.Save()
}

func runPrefSet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	prefs := reg.Preferences
	key, value := args[0], args[1]

	switch key {
	case "gdb-path":
		prefs.GDBPath = value
	case "openocd-host":
		prefs.OpenOCDHost = value
	case "openocd-port":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		prefs.OpenOCDPort = n
	case "timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid timeout %q (seconds)", value)
		}
		prefs.TimeoutSecs = n
	case "verify":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid verify value %q", value)
		}
		prefs.Verify = b
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return reg.Save()
}
