package usbdl

import "fmt"

// Command is a boot ROM command byte.
type Command byte

// Boot ROM commands.
const (
	CmdC8              Command = 0xC8
	CmdRead32          Command = 0xD1
	CmdWrite32         Command = 0xD4
	CmdJumpDA          Command = 0xD5
	CmdGetTargetConfig Command = 0xD8
	CmdUART1LogEnable  Command = 0xDB
	CmdGetHWSWVer      Command = 0xFC
	CmdGetHWCode       Command = 0xFD
)

var commandNames = map[Command]string{
	CmdC8:              "CMD_C8",
	CmdRead32:          "READ32",
	CmdWrite32:         "WRITE32",
	CmdJumpDA:          "JUMP_DA",
	CmdGetTargetConfig: "GET_TARGET_CONFIG",
	CmdUART1LogEnable:  "UART1_LOG_EN",
	CmdGetHWSWVer:      "GET_HW_SW_VER",
	CmdGetHWCode:       "GET_HW_CODE",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD_%02X", byte(c))
}

// C8 sub-commands are accepted in 0xB0-0xBA and 0xC0-0xCC. 0xB1 disables
// the caches.
const C8DisableCaches byte = 0xB1

// ValidC8 reports whether sub is a known C8 sub-command.
func ValidC8(sub byte) bool {
	return (sub >= 0xB0 && sub <= 0xBA) || (sub >= 0xC0 && sub <= 0xCC)
}

// Target configuration bits reported by GET_TARGET_CONFIG.
const (
	ConfigSBC uint32 = 1 << 0 // secure boot
	ConfigSLA uint32 = 1 << 1 // serial link authorisation
	ConfigDAA uint32 = 1 << 2 // download agent authentication
)

// TargetConfig is the security configuration word.
type TargetConfig uint32

// SecureBoot reports whether SBC is enabled.
func (c TargetConfig) SecureBoot() bool { return uint32(c)&ConfigSBC != 0 }

// SLA reports whether serial link authorisation is enabled.
func (c TargetConfig) SLA() bool { return uint32(c)&ConfigSLA != 0 }

// DAA reports whether download agent authentication is enabled.
func (c TargetConfig) DAA() bool { return uint32(c)&ConfigDAA != 0 }

func (c TargetConfig) String() string {
	return fmt.Sprintf("0x%08X (SBC=%t SLA=%t DAA=%t)", uint32(c), c.SecureBoot(), c.SLA(), c.DAA())
}

// HWSWVersion is the reply to GET_HW_SW_VER.
type HWSWVersion struct {
	HWSubcode uint16
	HWVersion uint16
	SWVersion uint16
}

func (v HWSWVersion) String() string {
	return fmt.Sprintf("hw_subcode=0x%04x hw_ver=0x%04x sw_ver=0x%04x", v.HWSubcode, v.HWVersion, v.SWVersion)
}
