package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/config"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/logging"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pagegen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] serve|worker|migrate\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "serve"
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port, perr := strconv.Atoi(os.Getenv("PORT")); perr == nil && port > 0 {
		cfg.Server.Port = port
	}

	if mode == "migrate" {
		if err := server.Migrate(&cfg); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := app.Close(closeCtx); cerr != nil {
			logger.Warn("application close failed", zap.Error(cerr))
		}
	}()

	switch mode {
	case "serve":
		return app.RunAPI(ctx)
	case "worker":
		return app.RunWorker(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown mode %q", mode)
	}
}
