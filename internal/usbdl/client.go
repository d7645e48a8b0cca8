package usbdl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/logging"
	"github.com/muurk/writeseq/internal/plan"
)

// Client speaks the MediaTek boot ROM download protocol. Every byte the
// host sends is echoed back by the device; multi-byte fields are
// big-endian.
type Client struct {
	port   io.ReadWriter
	logger *zap.Logger
	soc    *plan.SoC
}

// Option configures a Client.
type Option func(*Client)

// WithSoC skips detection and uses the given profile.
func WithSoC(soc *plan.SoC) Option {
	return func(c *Client) {
		c.soc = soc
	}
}

// New wraps an open port. A nil logger disables logging.
func New(port io.ReadWriter, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{port: port, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SoC returns the detected profile, or nil.
func (c *Client) SoC() *plan.SoC {
	return c.soc
}

// Detect reads the hardware code and selects the matching catalog entry.
func (c *Client) Detect(cat *plan.Catalog) (*plan.SoC, error) {
	code, err := c.HWCode()
	if err != nil {
		return nil, err
	}
	soc, ok := cat.ByHWCode(code)
	if !ok {
		return nil, &UnknownHWCodeError{HWCode: code}
	}
	c.soc = soc
	c.logger.Info("SoC detected",
		zap.String("soc", soc.Name),
		zap.String("hw_code", fmt.Sprintf("0x%04x", code)),
	)
	return soc, nil
}

// send writes data and checks the echo.
func (c *Client) send(data []byte) error {
	c.logger.Debug("tx", logging.RawBytes(data)...)
	if _, err := c.port.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	echo := make([]byte, len(data))
	if _, err := io.ReadFull(c.port, echo); err != nil {
		return &TransportError{Op: "read echo", Err: err}
	}
	c.logger.Debug("echo", logging.RawBytes(echo)...)
	if !bytes.Equal(echo, data) {
		return &EchoError{Sent: data, Got: echo}
	}
	return nil
}

func (c *Client) recv(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.port, buf); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	c.logger.Debug("rx", logging.RawBytes(buf)...)
	return buf, nil
}

func (c *Client) sendCommand(cmd Command) error {
	return c.send([]byte{byte(cmd)})
}

func (c *Client) getWord() (uint16, error) {
	b, err := c.recv(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Client) getDword() (uint32, error) {
	b, err := c.recv(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Client) putDword(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return c.send(b[:])
}

// status reads a status word. Strict commands require 0; the rest
// accept anything up to 0xff.
func (c *Client) status(cmd Command, phase string, strict bool) error {
	s, err := c.getWord()
	if err != nil {
		return err
	}
	if (strict && s != 0) || s > 0xff {
		return &StatusError{Command: cmd, Phase: phase, Status: s}
	}
	return nil
}

// HWCode returns the SoC hardware code.
func (c *Client) HWCode() (uint16, error) {
	if err := c.sendCommand(CmdGetHWCode); err != nil {
		return 0, err
	}
	code, err := c.getWord()
	if err != nil {
		return 0, err
	}
	if err := c.status(CmdGetHWCode, "reply", true); err != nil {
		return 0, err
	}
	return code, nil
}

// HWSWVersion returns the hardware subcode and versions.
func (c *Client) HWSWVersion() (HWSWVersion, error) {
	var v HWSWVersion
	if err := c.sendCommand(CmdGetHWSWVer); err != nil {
		return v, err
	}
	for _, dst := range []*uint16{&v.HWSubcode, &v.HWVersion, &v.SWVersion} {
		w, err := c.getWord()
		if err != nil {
			return v, err
		}
		*dst = w
	}
	if err := c.status(CmdGetHWSWVer, "reply", true); err != nil {
		return v, err
	}
	return v, nil
}

// TargetConfig returns the security configuration.
func (c *Client) TargetConfig() (TargetConfig, error) {
	if err := c.sendCommand(CmdGetTargetConfig); err != nil {
		return 0, err
	}
	cfg, err := c.getDword()
	if err != nil {
		return 0, err
	}
	if err := c.status(CmdGetTargetConfig, "reply", false); err != nil {
		return 0, err
	}
	return TargetConfig(cfg), nil
}

// UART1LogEnable switches boot ROM logging to UART1.
func (c *Client) UART1LogEnable() error {
	if err := c.sendCommand(CmdUART1LogEnable); err != nil {
		return err
	}
	return c.status(CmdUART1LogEnable, "reply", false)
}

// C8 runs a C8 sub-command and returns its data byte.
func (c *Client) C8(sub byte) (byte, error) {
	if !ValidC8(sub) {
		return 0, fmt.Errorf("unknown C8 sub-command 0x%02X", sub)
	}
	if err := c.sendCommand(CmdC8); err != nil {
		return 0, err
	}
	if err := c.send([]byte{sub}); err != nil {
		return 0, err
	}
	data, err := c.recv(1)
	if err != nil {
		return 0, err
	}
	if err := c.status(CmdC8, "reply", true); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Read32 reads count words starting at addr.
func (c *Client) Read32(addr uint32, count uint32) ([]uint32, error) {
	if err := c.sendCommand(CmdRead32); err != nil {
		return nil, err
	}
	if err := c.putDword(addr); err != nil {
		return nil, err
	}
	if err := c.putDword(count); err != nil {
		return nil, err
	}
	if err := c.status(CmdRead32, "setup", true); err != nil {
		return nil, err
	}

	words := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		w, err := c.getDword()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}

	if err := c.status(CmdRead32, "data", true); err != nil {
		return nil, err
	}
	return words, nil
}

// Write32 writes words starting at addr.
func (c *Client) Write32(addr uint32, words ...uint32) error {
	if err := c.sendCommand(CmdWrite32); err != nil {
		return err
	}
	if err := c.putDword(addr); err != nil {
		return err
	}
	if err := c.putDword(uint32(len(words))); err != nil {
		return err
	}
	if err := c.status(CmdWrite32, "setup", false); err != nil {
		return err
	}

	for _, w := range words {
		if err := c.putDword(w); err != nil {
			return err
		}
	}

	return c.status(CmdWrite32, "data", false)
}

// JumpDA transfers control to addr. Control does not come back to the
// boot ROM command loop unless the code at addr returns into it.
func (c *Client) JumpDA(addr uint32) error {
	if err := c.sendCommand(CmdJumpDA); err != nil {
		return err
	}
	if err := c.putDword(addr); err != nil {
		return err
	}
	if err := c.status(CmdJumpDA, "reply", false); err != nil {
		return err
	}
	c.logger.Info("jump", logging.Addr("entry", uint64(addr)))
	return nil
}
