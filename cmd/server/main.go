package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chainvault-backend/internal/app"
	"chainvault-backend/internal/config"
	"chainvault-backend/internal/db"
	"chainvault-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.Database.DSN != "" {
		db.InitDB()
	} else {
		log.Println("No database DSN configured, running memory-only")
	}

	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize service container: %v", err)
	}
	if err := container.Start(); err != nil {
		log.Fatalf("Failed to start services: %v", err)
	}
	defer container.Stop()

	r := router.SetupRouter(&router.Handlers{
		Vault:        container.VaultHandler(),
		Strategy:     container.StrategyHandler(),
		Orchestrator: container.OrchestratorHandler(),
		AdminAuth:    container.AdminAuthHandler(),
		Push:         container.WebSocketPushService,
	}, logger)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	go func() {
		log.Printf("Server listening on %s (chain %d)", addr, config.AppConfig.Chain.ChainID)
		if err := r.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
}
