package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-booking-inventory/internal/app"
	"github.com/iliyamo/cinema-booking-inventory/internal/config"
)

func main() {
	logger := log.New("cinema-booking")
	logger.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalj(log.JSON{"msg": "load config", "error": err.Error()})
	}
	logger.SetLevel(parseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalj(log.JSON{"msg": "start", "error": err.Error()})
	}
	if err := a.Run(ctx); err != nil {
		logger.Fatalj(log.JSON{"msg": "server stopped", "error": err.Error()})
	}
	logger.Infoj(log.JSON{"msg": "shutdown complete"})
}

func parseLevel(s string) log.Lvl {
	switch s {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
