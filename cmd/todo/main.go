package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Makepad-fr/tada-cloud/internal/auth"
	"github.com/Makepad-fr/tada-cloud/internal/cli"
	"github.com/Makepad-fr/tada-cloud/internal/config"
	"github.com/Makepad-fr/tada-cloud/internal/logging"
	"github.com/Makepad-fr/tada-cloud/internal/ui"
)

const tuiLogFile = "todo.log"

func main() {
	os.Exit(run())
}

func run() int {
	// Root flags (apply to every subcommand), then config files and env.
	cfg, args, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return 2
	}
	ui.SetTheme(cfg.Theme)

	if len(args) == 0 {
		cli.PrintHelp(os.Stdout)
		return 2
	}

	// The TUI owns the terminal, so its logs go to a file unless told otherwise.
	logFile := cfg.LogFile
	if logFile == "" && args[0] == "tui" {
		if dir, err := auth.Dir(); err == nil {
			logFile = filepath.Join(dir, tuiLogFile)
		}
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		File:        logFile,
		Development: logFile == "",
	})
	if err != nil {
		ui.Fail(os.Stderr, "logger: "+err.Error())
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := cli.Run(ctx, args, cli.Options{
		Config: cfg,
		Logger: logger,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	return code
}
