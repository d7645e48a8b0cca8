// Package plan loads write plans and the SoC catalog.
//
// A plan is a YAML file describing one Argument Block:
//
//	name: unlock
//	soc: mt6735
//	patches: [watchdog, bounds_check]
//	callback: 0
//	ops:
//	  - address: 0x10206040
//	    value: 0x00000001
//	  - { address: "0x1000", value: 170 }
//
// Numbers may be plain integers or strings in any Go integer syntax.
// Patch sets named under patches are taken from the SoC profile and
// replayed before the explicit ops, in the order listed.
//
// The SoC catalog is embedded in the binary and parsed once on first use
// by LoadCatalog. It records each profile's hardware code, memory map,
// DMA engine and named patch sets.
package plan
