package gdb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/gdb/scripts"
)

// targetGDB is a stand-in for arm-none-eabi-gdb that interprets the
// subset of commands the write scripts use against a word memory kept in
// mem.txt. Stores and reads at addresses listed in faults.txt print GDB's
// memory error and exit 1, after the earlier stores have landed. The last
// script it ran is kept as last.gdb and acknowledgment calls are appended
// to calls.txt.
const targetGDB = `#!/bin/sh
dir=$(dirname "$0")
cp "$4" "$dir/last.gdb"
touch "$dir/mem.txt" "$dir/faults.txt"
exec awk -v dir="$dir" '
FILENAME == dir "/mem.txt" { mem[$1] = $2; next }
FILENAME == dir "/faults.txt" { fault[$1] = 1; next }
/^echo / { s = substr($0, 6); sub(/\\n$/, "", s); print s; next }
/^call / { print $0 >> (dir "/calls.txt"); next }
/^set [{]/ {
	match($0, /[}]0x[0-9a-fA-F]+/)
	addr = substr($0, RSTART + 1, RLENGTH - 1)
	if (addr in fault) { print "Cannot access memory at address " addr; failed = 1; exit 1 }
	mem[addr] = $NF
	next
}
/^x\/1/ {
	addr = $2
	if (addr in fault) { print "Cannot access memory at address " addr; failed = 1; exit 1 }
	v = (addr in mem) ? mem[addr] : "0x00000000"
	printf "%s:\t%s\n", addr, v
	next
}
END {
	printf "" > (dir "/mem.txt")
	for (a in mem) print a, mem[a] >> (dir "/mem.txt")
	if (failed) exit 1
}
' "$dir/mem.txt" "$dir/faults.txt" "$4"
`

type fakeTarget struct {
	dir string
}

func newFakeTarget(t *testing.T) (*fakeTarget, *Executor) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gdb"), []byte(targetGDB), 0755); err != nil {
		t.Fatalf("failed to create fake GDB: %v", err)
	}
	config := DefaultConfig()
	config.GDBPath = filepath.Join(dir, "gdb")
	config.WorkDir = dir
	config.Timeout = 10 * time.Second
	return &fakeTarget{dir: dir}, NewExecutor(config, zap.NewNop())
}

func (f *fakeTarget) write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fakeTarget) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return string(data)
}

// memory returns the target's words keyed by the address text GDB saw.
func (f *fakeTarget) memory(t *testing.T) map[string]string {
	t.Helper()
	mem := make(map[string]string)
	for _, line := range strings.Split(f.read(t, "mem.txt"), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			mem[fields[0]] = fields[1]
		}
	}
	return mem
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.GDBPath != "arm-none-eabi-gdb" {
		t.Errorf("GDBPath = %q, want arm-none-eabi-gdb", config.GDBPath)
	}
	if config.OpenOCDHost != "localhost" || config.OpenOCDPort != 3333 {
		t.Errorf("OpenOCD = %s:%d, want localhost:3333", config.OpenOCDHost, config.OpenOCDPort)
	}
	if config.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", config.Timeout)
	}
}

func TestExecute_ApplyWritesScript(t *testing.T) {
	target, e := newFakeTarget(t)
	ops := []argblock.Op{
		{Address: 0x1000, Value: 0xAA},
		{Address: 0x1004, Value: 0xBB},
		{Address: 0x1000, Value: 0xCC},
	}

	result, err := e.Execute(context.Background(),
		scripts.NewApplyWritesScript("localhost", 3333, 0x4001, ops, 4, false))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.WordsWritten != 3 {
		t.Errorf("result success=%v written=%d, want true/3", result.Success, result.WordsWritten)
	}
	if !result.GetDataBool("acknowledged") {
		t.Error("acknowledgment marker not seen")
	}
	if result.Duration <= 0 || result.RawOutput == "" {
		t.Errorf("duration=%v output=%q", result.Duration, result.RawOutput)
	}

	mem := target.memory(t)
	if mem["0x00001000"] != "0x000000cc" || mem["0x00001004"] != "0x000000bb" {
		t.Errorf("memory = %v, want last store to win", mem)
	}

	script := target.read(t, "last.gdb")
	callAt := strings.Index(script, "call ")
	firstStore := strings.Index(script, "set {unsigned int}0x00001000 = 0x000000aa")
	if callAt < 0 || firstStore < 0 || callAt > firstStore {
		t.Errorf("acknowledgment does not precede the stores:\n%s", script)
	}
	if calls := target.read(t, "calls.txt"); strings.Count(calls, "(0, 0, 1)") != 1 {
		t.Errorf("acknowledgment calls = %q, want exactly one with (0, 0, 1)", calls)
	}
}

func TestExecute_FaultKeepsProgressMarkers(t *testing.T) {
	target, e := newFakeTarget(t)
	target.write(t, "faults.txt", "0x00001004\n")
	ops := []argblock.Op{{Address: 0x1000, Value: 1}, {Address: 0x1004, Value: 2}}

	_, err := e.Execute(context.Background(),
		scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false))
	var execErr *GDBExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Execute() error = %v, want GDBExecutionError", err)
	}
	if execErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Stdout, "WROTE 0") || strings.Contains(execErr.Stdout, "WROTE 1") {
		t.Errorf("stdout = %q, want only the first store marker", execErr.Stdout)
	}
	if target.memory(t)["0x00001000"] != "0x00000001" {
		t.Error("store before the fault did not land")
	}
}

func TestApply_PartialProgress(t *testing.T) {
	tests := []struct {
		name      string
		callback  argblock.Word
		faultAt   string
		wantAcked bool
		wantDone  int
	}{
		{name: "fault on first store", faultAt: "0x00002000", wantDone: 0},
		{name: "fault after one store", faultAt: "0x00002004", wantDone: 1},
		{name: "fault on last store with callback", callback: 0x4001, faultAt: "0x00002008", wantAcked: true, wantDone: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, e := newFakeTarget(t)
			target.write(t, "faults.txt", tt.faultAt+"\n")
			block := &argblock.Block{Callback: tt.callback, Ops: []argblock.Op{
				{Address: 0x2000, Value: 1},
				{Address: 0x2004, Value: 2},
				{Address: 0x2008, Value: 3},
			}}

			out, err := e.Apply(context.Background(), block, ApplyOptions{Verify: true})
			if out != nil {
				t.Errorf("Apply() result = %+v, want nil on failure", out)
			}
			var seqErr *WriteSequenceError
			if !errors.As(err, &seqErr) {
				t.Fatalf("Apply() error = %T %v, want WriteSequenceError", err, err)
			}
			if seqErr.Written != tt.wantDone || seqErr.Total != 3 {
				t.Errorf("written %d of %d, want %d of 3", seqErr.Written, seqErr.Total, tt.wantDone)
			}
			if seqErr.Acknowledged != tt.wantAcked {
				t.Errorf("Acknowledged = %v, want %v", seqErr.Acknowledged, tt.wantAcked)
			}
			if !strings.Contains(seqErr.Error(), "Cannot access memory at address "+tt.faultAt) {
				t.Errorf("error = %v", seqErr)
			}
			if got := len(target.memory(t)); got != tt.wantDone {
				t.Errorf("%d words landed, want %d", got, tt.wantDone)
			}
		})
	}
}

func TestApply_VerifiesFinalValues(t *testing.T) {
	target, e := newFakeTarget(t)
	block := &argblock.Block{Ops: []argblock.Op{
		{Address: 0x3000, Value: 0x11},
		{Address: 0x3004, Value: 0x22},
		{Address: 0x3000, Value: 0x33},
	}}

	out, err := e.Apply(context.Background(), block, ApplyOptions{Verify: true})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Verify == nil || out.Verify.GetData("verified") != 2 {
		t.Fatalf("verify result = %+v, want 2 addresses verified", out.Verify)
	}
	if !strings.Contains(target.read(t, "last.gdb"), "x/1wx 0x00003000") {
		t.Error("verify script did not read back 0x3000")
	}
}

func TestExecute_VerifyWritesScript(t *testing.T) {
	target, e := newFakeTarget(t)
	target.write(t, "mem.txt", "0x00001000 0x000000aa\n0x00001004 0x00000000\n")
	block := &argblock.Block{Ops: []argblock.Op{{Address: 0x1000, Value: 0xAA}, {Address: 0x1004, Value: 0xBB}}}

	_, err := e.Verify(context.Background(), block, 4)
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("Verify() error = %v, want VerifyError", err)
	}
	if len(verr.Mismatches) != 1 || verr.Mismatches[0].Address != 0x1004 || verr.Mismatches[0].Expected != 0xBB {
		t.Errorf("mismatches = %v", verr.Mismatches)
	}
}

func TestExecute_WideWords(t *testing.T) {
	target, e := newFakeTarget(t)
	block := &argblock.Block{Callback: 0x8000_1000, Ops: []argblock.Op{{Address: 0x1_0000_0000, Value: 0x1122_3344_5566_7788}}}

	if _, err := e.Apply(context.Background(), block, ApplyOptions{WordSize: 8, Verify: true}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if mem := target.memory(t); mem["0x100000000"] != "0x1122334455667788" {
		t.Errorf("memory = %v", mem)
	}
	if calls := target.read(t, "calls.txt"); !strings.Contains(calls, "unsigned long, unsigned long, unsigned long") {
		t.Errorf("acknowledgment call = %q, want unsigned long arguments", calls)
	}
	if !strings.Contains(target.read(t, "last.gdb"), "x/1gx 0x100000000") {
		t.Error("verify did not read giant words")
	}
}

func TestExecute_RemovesScriptFile(t *testing.T) {
	target, e := newFakeTarget(t)
	ops := []argblock.Op{{Address: 0x1000, Value: 1}}
	if _, err := e.Execute(context.Background(), scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	entries, err := os.ReadDir(target.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "writeseq-gdb-") {
			t.Errorf("script file %s was not removed", entry.Name())
		}
	}
}

func TestExecute_Echo(t *testing.T) {
	_, e := newFakeTarget(t)
	var echo bytes.Buffer
	e.config.Echo = &echo

	ops := []argblock.Op{{Address: 0x1000, Value: 1}}
	result, err := e.Execute(context.Background(), scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if echo.String() != result.RawOutput {
		t.Errorf("echo = %q, want %q", echo.String(), result.RawOutput)
	}
}

func TestExecute_Failures(t *testing.T) {
	ops := []argblock.Op{{Address: 0x1000, Value: 1}}

	t.Run("GDB missing", func(t *testing.T) {
		config := DefaultConfig()
		config.GDBPath = "/nonexistent/arm-none-eabi-gdb"
		config.WorkDir = t.TempDir()
		e := NewExecutor(config, nil)

		_, err := e.Execute(context.Background(), scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false))
		var execErr *GDBExecutionError
		if !errors.As(err, &execErr) || execErr.ExitCode != -1 {
			t.Errorf("Execute() error = %v, want GDBExecutionError with exit -1", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		dir := t.TempDir()
		gdb := filepath.Join(dir, "gdb")
		if err := os.WriteFile(gdb, []byte("#!/bin/sh\nexec sleep 5\n"), 0755); err != nil {
			t.Fatal(err)
		}
		config := DefaultConfig()
		config.GDBPath = gdb
		config.WorkDir = dir
		config.Timeout = 100 * time.Millisecond
		e := NewExecutor(config, nil)

		_, err := e.Execute(context.Background(), scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false))
		var timeout *TimeoutError
		if !errors.As(err, &timeout) {
			t.Errorf("Execute() error = %v, want TimeoutError", err)
		}
	})

	t.Run("no success marker", func(t *testing.T) {
		dir := t.TempDir()
		gdb := filepath.Join(dir, "gdb")
		if err := os.WriteFile(gdb, []byte("#!/bin/sh\necho '[1/2] Halting target...'\n"), 0755); err != nil {
			t.Fatal(err)
		}
		config := DefaultConfig()
		config.GDBPath = gdb
		config.WorkDir = dir
		e := NewExecutor(config, nil)

		result, err := e.Execute(context.Background(), scripts.NewApplyWritesScript("localhost", 3333, 0, ops, 4, false))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if result.Success || result.Error == nil {
			t.Errorf("result = %+v, want failure", result)
		}
		if result.FailedSteps() != 1 {
			t.Errorf("FailedSteps() = %d, want 1", result.FailedSteps())
		}
	})
}
