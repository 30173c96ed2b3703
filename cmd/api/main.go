package main

import (
	"context"
	"flag"
	"log"

	"github.com/openpost-io/openpost/internal/api"
	"github.com/openpost-io/openpost/internal/auth"
	"github.com/openpost-io/openpost/internal/config"
	"github.com/openpost-io/openpost/internal/database"
	"github.com/openpost-io/openpost/internal/posts"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Starting openpost v%s with config: %s", version, *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	db := database.New(cfg)
	if err := db.Connect(); err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	authSvc := auth.NewService(db)
	postsSvc := posts.NewService(db)

	go authSvc.RunSweeper(context.Background(), auth.SweepInterval)

	server := api.New(cfg, authSvc, postsSvc)
	log.Fatal(server.Serve())
}
