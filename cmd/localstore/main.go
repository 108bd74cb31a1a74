// Package main opens, migrates or serves the local marketplace store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	localstorecmd "github.com/ecomarket/localstore/internal/cmd/localstore"
	"github.com/ecomarket/localstore/internal/platform/config"
	apperrors "github.com/ecomarket/localstore/internal/platform/errors"
)

func main() {
	cfg, err := localstorecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[LOCALSTORE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := localstorecmd.Run(ctx, cfg); err != nil {
		if apperrors.CodeOf(err).Fatal() {
			stop()
			config.ExitCodef(config.ExitStoreUnavailable, "local store unavailable: %v", err)
		}
		log.Fatalf("localstore %s: %v", cfg.Mode, err)
	}
}
