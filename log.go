package reactorecho

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/markity/reactor-echo/pkg/async_log"
)

const (
	logBackupBuffers = 4
	logBufferSize    = 1 << 20
)

// NewLogger builds the console logger the server and the examples use, the
// returned func flushes and releases the sink.
func NewLogger(cfg LogConfig) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var (
		sink    zapcore.WriteSyncer
		release = func() {}
	)
	if cfg.File == "" {
		sink = zapcore.Lock(os.Stdout)
	} else {
		w, err := async_log.NewWriter(cfg.File, logBackupBuffers, logBufferSize)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		sink = w
		release = func() { _ = w.Close() }
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level)
	logger := zap.New(core)
	return logger, func() {
		_ = logger.Sync()
		release()
	}, nil
}
