// Package logging provides structured logging for the writeseq tools.
//
// This package wraps a global zap logger. It is silent by default: CLI
// output goes through internal/ui, and log lines only appear when the
// WRITESEQ_LOG_LEVEL environment variable is set.
//
// # Log Levels
//
//   - Debug: wire dumps, every store of a sequence, generated scripts
//   - Info: device detection, run start and completion
//   - Warn: recoverable issues (echo retries, skipped callbacks)
//   - Error: failed runs
//
// # Usage
//
// Commands initialise once and hand named loggers to library packages:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	client := usbdl.New(port, logging.Named("usbdl"))
//
// Wire traffic and single stores have helpers with fixed field names:
//
//	logging.LogRawBytes("brom tx", frame)
//	logging.LogWrite(i, op.Address, op.Value)
//
// Library code holding its own *zap.Logger uses the field builders:
//
//	logger.Debug("tx", logging.RawBytes(frame)...)
//	logger.Info("jump", logging.Addr("entry", entry))
package logging
