package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "headerchaind.log"
	defaultNetwork        = "mainnet"
	defaultNotifierListen = ""
)

var (
	headerchaindHomeDir = appDataDir("headerchaind")
	defaultConfigFile   = filepath.Join(headerchaindHomeDir, "headerchaind.conf")
	defaultDataDir      = filepath.Join(headerchaindHomeDir, defaultDataDirname)
	defaultLogDir       = filepath.Join(headerchaindHomeDir, defaultLogDirname)
)

// config defines the configuration options for headerchaind.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        string `short:"b" long:"datadir" description:"Directory to store header branch files"`
	LogDir         string `long:"logdir" description:"Directory to log output"`
	Network        string `short:"n" long:"network" description:"Network to use {mainnet, testnet, regnet}"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	NotifierListen string `long:"notifierlisten" description:"Address to serve tip-change websocket notifications on (disabled if empty)"`
}

// loadConfig parses command-line flags, returning a fully populated
// config with defaults applied for anything left unset. The file named by
// ConfigFile is not read.
func loadConfig() (*config, error) {
	cfg := config{
		ConfigFile:     defaultConfigFile,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		Network:        defaultNetwork,
		DebugLevel:     defaultLogLevel,
		NotifierListen: defaultNotifierListen,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	return &cfg, nil
}

// appDataDir mirrors the per-OS application data directory convention the
// rest of the pack's full nodes use (an os.UserHomeDir-relative dotfile on
// Unix), kept minimal here since headerchaind is a thin demonstration
// binary rather than a full node with its own wallet/GUI data to manage.
func appDataDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+name)
	}
	return filepath.Join(home, "."+name)
}
