package main

import (
	"log"

	"addrproof/internal/config"
	"addrproof/internal/infra/db"
	httpinfra "addrproof/internal/infra/http"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(config.FromEnv()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg config.Config) error {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	store, err := db.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := httpinfra.NewServer(cfg, store)
	defer srv.Close()
	log.Printf("addrproofd listening on %s", cfg.HTTPAddr)
	return srv.Run()
}
