package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"supportdesk/scheduler"
	"supportdesk/server"
)

func main() {
	godotenv.Load()

	s := server.NewServer()

	stopRules, err := scheduler.Start(context.Background(), s.RulesService, s.Config.Rules.Cron)
	if err != nil {
		log.Fatal("Failed to start rules scheduler:", err)
	}
	defer stopRules()

	go s.Start(s.Config.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Error("shutdown error:", err)
	}
}
