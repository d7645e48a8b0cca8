package usbdl

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultTimeout matches the boot ROM's tolerance for a stalled host.
const DefaultTimeout = time.Second

// ErrTimeout is returned by Port when the device sends or accepts nothing
// within the port timeout.
var ErrTimeout = errors.New("usbdl: serial timeout")

// serialPort is the subset of serial.Port that Port drives.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Port is the boot ROM's CDC ACM serial device. The line settings are
// ignored by the device but required by the driver.
type Port struct {
	sp      serialPort
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// OpenPort opens path (e.g. /dev/ttyACM0). Reads and writes that make no
// progress for timeout fail with ErrTimeout; a zero timeout blocks.
func OpenPort(path string, timeout time.Duration) (*Port, error) {
	sp, err := serial.Open(path, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	p, err := newPort(sp, timeout)
	if err != nil {
		sp.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", path, err)
	}
	return p, nil
}

func newPort(sp serialPort, timeout time.Duration) (*Port, error) {
	if timeout > 0 {
		if err := sp.SetReadTimeout(timeout); err != nil {
			return nil, err
		}
	}
	// Drop anything the device queued before we attached.
	if err := sp.ResetInputBuffer(); err != nil {
		return nil, err
	}
	return &Port{sp: sp, timeout: timeout}, nil
}

// Read implements io.Reader. The driver reports an expired read timeout
// as an empty read, which is turned into ErrTimeout so callers looping in
// io.ReadFull do not spin.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.sp.Read(b)
	if n == 0 && err == nil && len(b) > 0 && p.timeout > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

type writeResult struct {
	n   int
	err error
}

// Write implements io.Writer. The driver has no write timeout, so a write
// that outlives the port timeout is abandoned and the port closed, which
// unblocks it.
func (p *Port) Write(b []byte) (int, error) {
	if p.timeout <= 0 {
		return p.sp.Write(b)
	}
	done := make(chan writeResult, 1)
	go func() {
		n, err := p.sp.Write(b)
		done <- writeResult{n, err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.n, r.err
	case <-timer.C:
		_ = p.Close()
		return 0, ErrTimeout
	}
}

// Close closes the device. Later calls return the first result.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.sp.Close()
	})
	return p.closeErr
}
