// blablachatd is the realtime store daemon. Clients connect over a single
// websocket endpoint; state is mirrored to SQLite when BLABLACHAT_DB is set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tassianasc/blablachat/internal/logging"
	"github.com/tassianasc/blablachat/internal/server"
	"github.com/tassianasc/blablachat/internal/store"
)

func main() {
	godotenv.Load()
	log := logging.New(os.Stdout, os.Getenv("BLABLACHAT_LOG_LEVEL"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	cfg := server.Config{
		Addr:   ":" + port,
		DBPath: os.Getenv("BLABLACHAT_DB"),
	}

	var persist *server.Persistence
	if cfg.DBPath != "" {
		p, err := server.OpenPersistence(cfg.DBPath)
		if err != nil {
			log.Error("open persistence", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer p.Close()
		persist = p
	} else {
		log.Warn("BLABLACHAT_DB not set, state is in-memory only")
	}

	engine := store.NewMemoryStore()
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(engine, persist, log)
	if err := hub.Restore(ctx); err != nil {
		log.Error("restore node tree", "error", err)
		os.Exit(1)
	}

	if err := server.New(cfg, hub, log).Run(ctx); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
