// Package config manages the writeseq user configuration file: named
// devices (how to reach them and which SoC they carry) and defaults for
// the GDB and OpenOCD connection.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/writeseq/config.yaml or $HOME/.config/writeseq/config.yaml
//   - macOS: $HOME/.config/writeseq/config.yaml
//   - Windows: %LOCALAPPDATA%\writeseq\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = registry.SetDevice("bench-tablet", &config.Device{
//	    Transport: config.TransportBROM,
//	    Port:      "/dev/ttyACM0",
//	    SoC:       "mt8163",
//	})
//	if err == nil {
//	    err = registry.Save()
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are serialised by a mutex and replace the file atomically.
package config
