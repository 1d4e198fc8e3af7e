package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/sessionkeeper/internal/authctl"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		_ = authctl.NewApp(nil, os.Stdin, os.Stdout).Run(ctx, []string{"help"})
		return
	}

	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr, cfg.Debug)

	exec, err := authctl.NewDBExecutor(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runErr := authctl.NewApp(exec, os.Stdin, os.Stdout).Run(ctx, args)
	if err := exec.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}

}
