package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btgoldspv/headerchain/blockchain"
	"github.com/btgoldspv/headerchain/headerfs"
	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// logRotator rotates the log file headerchaind writes to; it's written
// to directly from the backend's io.Writer plumbing below. Kept as a
// package-level var since it has to stay open for the process lifetime
// and be closed on exit.
var logRotator *rotator.Rotator

var (
	backendLog = slog.NewBackend(logWriter{})

	log      = backendLog.Logger("HDRD")
	chainLog = backendLog.Logger("CHAN")
	storeLog = backendLog.Logger("HFSD")
)

// logWriter implements io.Writer and plumbs through to logRotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory.
func initLogRotator(logFile string) error {
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	logRotator = r
	return nil
}

// setLogLevels sets the logging level for every subsystem logger this
// binary wires up.
func setLogLevels(levelName string) error {
	level, ok := slog.LevelFromString(levelName)
	if !ok {
		return fmt.Errorf("unknown debug level %q", levelName)
	}
	log.SetLevel(level)
	chainLog.SetLevel(level)
	storeLog.SetLevel(level)

	blockchain.UseLogger(chainLog)
	headerfs.UseLogger(storeLog)
	return nil
}

func logPath(cfg *config) string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}
