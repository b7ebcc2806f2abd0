package main

import (
	"log/slog"
	"net/http"
	"os"

	_ "net/http/pprof" // profiling

	"vtscan/internal/config"
	"vtscan/internal/vtscan/cmd"
	"vtscan/internal/vtscan/log"
)

func main() {
	defer log.RecoverPanic("main", func() {
		slog.Error("Application terminated due to unhandled panic")
	})

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Setup(os.Stderr, cfg.IsDebug())

	if cfg.Profile {
		go func() {
			slog.Info("Serving pprof", "addr", cfg.ProfileAddr)
			if httpErr := http.ListenAndServe(cfg.ProfileAddr, nil); httpErr != nil {
				slog.Error("Failed to pprof listen", "error", httpErr)
			}
		}()
	}

	cmd.Execute()
}
