package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/railway-reservation/internal/config"
	"github.com/iliyamo/railway-reservation/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConsumer()
	c := queue.NewConsumer(cfg.RabbitURL, cfg.EventQueue, cfg.BookingLogDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("consuming %s into %s/booking.log", c.Queue, c.LogDir)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
