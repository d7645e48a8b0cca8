package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv failed: %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected silent logger when no level is set")
	}
}

func TestInitialize_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "verbose"} {
		t.Run(level, func(t *testing.T) {
			if err := Initialize(level); err != nil {
				t.Fatalf("Initialize(%q) failed: %v", level, err)
			}
			if GetLogger() == nil {
				t.Fatal("expected logger")
			}
		})
	}
	logger = nil
}

func TestAddr(t *testing.T) {
	if got := Addr("a", 0x1000).String; got != "0x00001000" {
		t.Errorf("32-bit address = %q", got)
	}
	if got := Addr("a", 0x1_0000_0000).String; got != "0x0000000100000000" {
		t.Errorf("64-bit address = %q", got)
	}
}

func TestDumps(t *testing.T) {
	if got := asciiDump([]byte("ok\x00\xff")); got != "ok.." {
		t.Errorf("asciiDump = %q", got)
	}
	if got := hexDump([]byte{0xd1, 0x00}); got != "d100" {
		t.Errorf("hexDump = %q", got)
	}

	long := make([]byte, maxDump+10)
	if got := hexDump(long); !strings.HasSuffix(got, "...") || len(got) != 2*maxDump+3 {
		t.Errorf("long hexDump not truncated: len %d", len(got))
	}
	if got := asciiDump(long); len(got) != maxDump {
		t.Errorf("long asciiDump len = %d", len(got))
	}

	fields := RawBytes([]byte{1, 2, 3})
	if len(fields) != 3 || fields[0].Integer != 3 {
		t.Errorf("RawBytes fields = %+v", fields)
	}
}
