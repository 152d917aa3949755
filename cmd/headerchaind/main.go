// headerchaind is a thin demonstration binary for the header store: it
// loads (or creates) a data directory's branches, prints the checkpoints
// the store can currently vouch for, and optionally serves tip-change
// notifications over a websocket until interrupted.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/headerfs"
)

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return chaincfg.MainNetParams(), nil
	case "testnet":
		return chaincfg.TestNetParams(), nil
	case "regnet":
		return chaincfg.RegNetParams(), nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogRotator(logPath(cfg)); err != nil {
		return err
	}
	if err := setLogLevels(cfg.DebugLevel); err != nil {
		return err
	}

	params, err := networkParams(cfg.Network)
	if err != nil {
		return err
	}

	var notifier *headerfs.Notifier
	if cfg.NotifierListen != "" {
		notifier = headerfs.NewNotifier()
		go func() {
			log.Infof("serving tip-change notifications on %s", cfg.NotifierListen)
			if err := http.ListenAndServe(cfg.NotifierListen, notifier); err != nil {
				log.Errorf("notifier listener exited: %v", err)
			}
		}()
	}

	manager, err := headerfs.Bootstrap(cfg.DataDir, headerfs.Dependencies{
		Params:   params,
		Notifier: notifier,
	})
	if err != nil {
		return fmt.Errorf("bootstrapping header store: %w", err)
	}
	defer manager.Close()

	log.Infof("loaded %s header store from %s, tip height %d", cfg.Network, cfg.DataDir, manager.Root().Height())

	checkpoints := manager.GetCheckpoints()
	log.Infof("store can currently vouch for %d checkpoint(s)", len(checkpoints))
	for _, c := range checkpoints {
		fmt.Printf("%d %s\n", c.Height, c.Hash)
	}

	if notifier != nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		<-sigCh
		notifier.Close()
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
