// Package usbdl is a client for the MediaTek boot ROM download protocol,
// used to deliver write sequences over USB before any bootloader runs.
//
// # Protocol
//
// The host sends one command byte at a time and the device echoes every
// byte back. Addresses, counts and data words are big-endian on the
// wire. Most commands finish with a 16-bit status word: identification
// commands and READ32 require zero, while WRITE32, JUMP_DA and
// GET_TARGET_CONFIG treat anything up to 0xff as success.
//
//	port, err := usbdl.OpenPort("/dev/ttyACM0", usbdl.DefaultTimeout)
//	client := usbdl.New(port, logging.Named("usbdl"))
//	soc, err := client.Detect(catalog)
//
// # Restricted memory
//
// On locked parts the boot ROM refuses READ32/WRITE32 outside a small
// window. CQDMARead32 and CQDMAWrite32 move each word through the SoC's
// command queue DMA engine and a scratch word instead. Replaying the
// SoC's bounds_check patch set through the DMA path lifts the
// restriction for the rest of the session.
//
// # Write sequences
//
// Target adapts a client to the executor: each store becomes a WRITE32
// (or a DMA write). The protocol cannot call a function and return, so
// blocks with a callback either fail or have the callback dropped by the
// caller. Inject instead loads the native replay image into SRAM and
// jumps to it, which runs the callback on the device.
package usbdl
