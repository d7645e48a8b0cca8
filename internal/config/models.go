package config

import (
	"fmt"
	"sort"
	"time"
)

// Transport names how a device is reached.
const (
	TransportJTAG = "jtag"
	TransportBROM = "brom"
)

// Registry represents the entire user configuration file: named devices
// and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is a named target. JTAG devices are reached through OpenOCD,
// BROM devices through a serial port.
type Device struct {
	Transport   string    `yaml:"transport"`              // "jtag" or "brom"
	SoC         string    `yaml:"soc,omitempty"`          // Catalog name, e.g. "mt8163"
	Port        string    `yaml:"port,omitempty"`         // Serial device for brom
	OpenOCDHost string    `yaml:"openocd_host,omitempty"` // For jtag
	OpenOCDPort int       `yaml:"openocd_port,omitempty"` // For jtag
	LoadBase    uint32    `yaml:"load_base,omitempty"`    // Image load address, 0 for the SoC default
	LastUsed    time.Time `yaml:"last_used,omitempty"`
}

// Validate checks the fields required by the device's transport.
func (d *Device) Validate() error {
	switch d.Transport {
	case TransportJTAG:
		return nil
	case TransportBROM:
		if d.Port == "" {
			return fmt.Errorf("brom device needs a port")
		}
		return nil
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", d.Transport, TransportJTAG, TransportBROM)
	}
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	GDBPath     string `yaml:"gdb_path"`
	OpenOCDHost string `yaml:"openocd_host"`
	OpenOCDPort int    `yaml:"openocd_port"`
	TimeoutSecs int    `yaml:"timeout_secs"` // GDB run timeout
	Verify      bool   `yaml:"verify"`       // Read back after every apply
}

// Timeout returns TimeoutSecs as a duration.
func (p *Preferences) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

func defaultPreferences() *Preferences {
	return &Preferences{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		TimeoutSecs: 300,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice returns the named device, or nil.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// SetDevice adds or replaces a device after validating it.
func (r *Registry) SetDevice(name string, d *Device) error {
	if name == "" {
		return fmt.Errorf("device name is empty")
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("device %s: %w", name, err)
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = d
	return nil
}

// RemoveDevice deletes a device and reports whether it existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// TouchDevice records that a device was just used.
func (r *Registry) TouchDevice(name string) {
	if d := r.Devices[name]; d != nil {
		d.LastUsed = time.Now()
	}
}

// DeviceNames returns device names in sorted order.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint returns the OpenOCD host and port for a JTAG device, falling
// back to the preferences for unset fields.
func (r *Registry) Endpoint(d *Device) (string, int) {
	host, port := r.Preferences.OpenOCDHost, r.Preferences.OpenOCDPort
	if d != nil && d.OpenOCDHost != "" {
		host = d.OpenOCDHost
	}
	if d != nil && d.OpenOCDPort != 0 {
		port = d.OpenOCDPort
	}
	return host, port
}
