package gdb

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	crossConfiguration = `This GDB was configured as follows:
   configure --host=x86_64-pc-linux-gnu --target=arm-none-eabi
             --with-auto-load-dir=$debugdir:$datadir/auto-load
`
	multiarchConfiguration = `This GDB was configured as follows:
   configure --host=x86_64-linux-gnu --target=x86_64-linux-gnu
             --enable-targets=all
`
	hostConfiguration = `This GDB was configured as follows:
   configure --host=x86_64-linux-gnu --target=x86_64-linux-gnu
`
)

func TestArmTarget(t *testing.T) {
	tests := []struct {
		name       string
		config     string
		wantTarget string
		wantARM    bool
	}{
		{name: "cross", config: crossConfiguration, wantTarget: "arm-none-eabi", wantARM: true},
		{name: "multiarch", config: multiarchConfiguration, wantTarget: "x86_64-linux-gnu", wantARM: true},
		{name: "host only", config: hostConfiguration, wantTarget: "x86_64-linux-gnu"},
		{name: "extra targets", config: "--target=aarch64-linux-gnu --enable-targets=arm-linux-gnueabihf,riscv64", wantTarget: "aarch64-linux-gnu", wantARM: true},
		{name: "empty", config: "", wantTarget: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := armTarget(tt.config)
			if target != tt.wantTarget || ok != tt.wantARM {
				t.Errorf("armTarget() = %q, %v, want %q, %v", target, ok, tt.wantTarget, tt.wantARM)
			}
		})
	}
}

// fakeGDBBinary writes a gdb that answers --version and --configuration.
func fakeGDBBinary(t *testing.T, configuration string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "configuration"), []byte(configuration), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "gdb")
	body := `#!/bin/sh
case "$1" in
--version) echo "GNU gdb (GDB) 14.2" ;;
--configuration) cat "$(dirname "$0")/configuration" ;;
*) exit 2 ;;
esac
`
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func listen(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestValidatePrerequisites(t *testing.T) {
	host, port := listen(t)

	t.Run("ready", func(t *testing.T) {
		result, err := ValidatePrerequisites(context.Background(), fakeGDBBinary(t, crossConfiguration), host, port)
		if err != nil {
			t.Fatalf("ValidatePrerequisites() error = %v", err)
		}
		if !result.AllAvailable || len(result.Checks) != 3 {
			t.Fatalf("result = %+v", result)
		}
		if result.Checks[0].Version != "GNU gdb (GDB) 14.2" || result.Checks[1].Version != "arm-none-eabi" {
			t.Errorf("versions = %q, %q", result.Checks[0].Version, result.Checks[1].Version)
		}
	})

	t.Run("host-only GDB", func(t *testing.T) {
		result, _ := ValidatePrerequisites(context.Background(), fakeGDBBinary(t, hostConfiguration), host, port)
		if result.AllAvailable {
			t.Error("a host-only GDB should fail setup")
		}
		if !strings.Contains(result.Checks[1].Message, "x86_64-linux-gnu only") {
			t.Errorf("message = %q", result.Checks[1].Message)
		}
	})

	t.Run("OpenOCD down only warns", func(t *testing.T) {
		result, _ := ValidatePrerequisites(context.Background(), fakeGDBBinary(t, crossConfiguration), "127.0.0.1", closedPort(t))
		if !result.AllAvailable {
			t.Error("OpenOCD being down should not fail setup")
		}
		last := result.Checks[len(result.Checks)-1]
		if last.Name != "OpenOCD" || last.Available || last.Required {
			t.Errorf("OpenOCD check = %+v", last)
		}
		report := FormatPrerequisiteReport(result)
		if !strings.Contains(report, "! OpenOCD") || !strings.Contains(report, "✓ GDB ARM support (arm-none-eabi)") {
			t.Errorf("report:\n%s", report)
		}
	})

	t.Run("GDB missing", func(t *testing.T) {
		result, _ := ValidatePrerequisites(context.Background(), "/nonexistent/gdb", host, port)
		if result.AllAvailable || len(result.Checks) != 2 {
			t.Errorf("result = %+v, want GDB failure and no target check", result)
		}
	})
}

func TestValidateConfig(t *testing.T) {
	config := DefaultConfig()
	config.GDBPath = fakeGDBBinary(t, multiarchConfiguration)
	config.OpenOCDHost, config.OpenOCDPort = "127.0.0.1", closedPort(t)
	if err := NewExecutor(config, nil).ValidateConfig(context.Background()); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}

	config.GDBPath = fakeGDBBinary(t, hostConfiguration)
	err := NewExecutor(config, nil).ValidateConfig(context.Background())
	var prereq *PrerequisiteError
	if !errors.As(err, &prereq) || prereq.Prerequisite != "GDB ARM support" {
		t.Errorf("ValidateConfig() error = %v, want GDB ARM support failure", err)
	}
}
