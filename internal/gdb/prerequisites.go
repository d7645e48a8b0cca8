package gdb

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

const checkTimeout = 2 * time.Second

// PrerequisiteCheck is the outcome of one setup check.
type PrerequisiteCheck struct {
	Name      string
	Available bool
	// Required checks fail the setup; the others only warn.
	Required bool
	Path     string
	Version  string
	Message  string
	Error    error
}

// PrerequisiteResult collects the setup checks.
type PrerequisiteResult struct {
	Checks []PrerequisiteCheck
	// AllAvailable is false when any required check failed.
	AllAvailable bool
}

func (r *PrerequisiteResult) add(c PrerequisiteCheck) {
	r.Checks = append(r.Checks, c)
	if c.Required && !c.Available {
		r.AllAvailable = false
	}
}

// ValidatePrerequisites checks what writeseq-jtag needs: a GNU GDB on
// gdbPath that can debug 32-bit ARM, and an OpenOCD GDB server. OpenOCD
// being down is only a warning; it is usually started after setup.
func ValidatePrerequisites(ctx context.Context, gdbPath, openocdHost string, openocdPort int) (*PrerequisiteResult, error) {
	result := &PrerequisiteResult{AllAvailable: true}

	bin := checkGDBBinary(ctx, gdbPath)
	result.add(bin)
	if bin.Available {
		result.add(checkGDBTarget(ctx, bin.Path))
	}
	result.add(checkOpenOCD(ctx, openocdHost, openocdPort))
	return result, nil
}

func runGDB(ctx context.Context, path string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	return string(out), err
}

func checkGDBBinary(ctx context.Context, gdbPath string) PrerequisiteCheck {
	check := PrerequisiteCheck{Name: "GDB", Required: true}

	path, err := exec.LookPath(gdbPath)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s not found; install arm-none-eabi-gdb or gdb-multiarch and pass --gdb-path", gdbPath)
		return check
	}
	check.Path = path

	out, err := runGDB(ctx, path, "--version")
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s --version failed: %v", path, err)
		return check
	}
	if !strings.Contains(out, "GNU gdb") {
		check.Message = fmt.Sprintf("%s is not GNU gdb", path)
		return check
	}

	check.Version = strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	check.Available = true
	check.Message = "Found at " + path
	return check
}

// checkGDBTarget asks GDB how it was configured. A host-only build cannot
// talk to an ARM target through OpenOCD.
func checkGDBTarget(ctx context.Context, path string) PrerequisiteCheck {
	check := PrerequisiteCheck{Name: "GDB ARM support", Required: true, Path: path}

	out, err := runGDB(ctx, path, "--configuration")
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s --configuration failed: %v", path, err)
		return check
	}

	target, ok := armTarget(out)
	check.Version = target
	if !ok {
		check.Message = fmt.Sprintf("%s is built for %s only; use arm-none-eabi-gdb or gdb-multiarch", path, target)
		return check
	}
	check.Available = true
	return check
}

// armTarget reads the output of `gdb --configuration` and reports the
// configured target and whether 32-bit ARM is among the debuggable ones.
func armTarget(configuration string) (string, bool) {
	var target string
	ok := false
	for _, field := range strings.Fields(configuration) {
		switch {
		case strings.HasPrefix(field, "--target="):
			target = strings.TrimPrefix(field, "--target=")
			if strings.HasPrefix(target, "arm") {
				ok = true
			}
		case field == "--enable-targets=all":
			ok = true
		case strings.HasPrefix(field, "--enable-targets="):
			for _, t := range strings.Split(strings.TrimPrefix(field, "--enable-targets="), ",") {
				if strings.HasPrefix(t, "arm") {
					ok = true
				}
			}
		}
	}
	if target == "" {
		target = "unknown"
	}
	return target, ok
}

func checkOpenOCD(ctx context.Context, host string, port int) PrerequisiteCheck {
	check := PrerequisiteCheck{Name: "OpenOCD"}
	if err := ValidateOpenOCDConnection(ctx, host, port); err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("nothing listening on %s:%d; start openocd with your adapter and target configs", host, port)
		return check
	}
	check.Available = true
	check.Message = fmt.Sprintf("GDB server on %s:%d", host, port)
	return check
}

// ValidateGDBPath returns a *PrerequisiteError unless gdbPath is a GNU GDB
// that can debug ARM.
func ValidateGDBPath(ctx context.Context, gdbPath string) error {
	if gdbPath == "" {
		return &PrerequisiteError{Prerequisite: "GDB", Details: "GDB path is empty"}
	}
	for _, check := range []func() PrerequisiteCheck{
		func() PrerequisiteCheck { return checkGDBBinary(ctx, gdbPath) },
		func() PrerequisiteCheck { return checkGDBTarget(ctx, gdbPath) },
	} {
		if c := check(); !c.Available {
			return &PrerequisiteError{Prerequisite: c.Name, Details: c.Message, Err: c.Error}
		}
	}
	return nil
}

// ValidateOpenOCDConnection dials the OpenOCD GDB server.
func ValidateOpenOCDConnection(ctx context.Context, host string, port int) error {
	dialer := net.Dialer{Timeout: checkTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return &GDBConnectionError{Host: host, Port: port, Err: err}
	}
	return conn.Close()
}

// FormatPrerequisiteReport renders result one check per line, with any
// detail indented below it.
func FormatPrerequisiteReport(result *PrerequisiteResult) string {
	var sb strings.Builder
	for _, check := range result.Checks {
		mark := "✓"
		switch {
		case check.Available:
		case check.Required:
			mark = "✗"
		default:
			mark = "!"
		}
		fmt.Fprintf(&sb, "%s %s", mark, check.Name)
		if check.Version != "" {
			fmt.Fprintf(&sb, " (%s)", check.Version)
		}
		sb.WriteString("\n")
		if check.Message != "" {
			fmt.Fprintf(&sb, "    %s\n", check.Message)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
