// Package main provides the folish command line tool for inspecting,
// importing, exporting and serving canvas projects.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/folish/folish/pkg/commands"
	"github.com/folish/folish/pkg/config"
	"github.com/folish/folish/pkg/logging"
	"github.com/folish/folish/pkg/projectstore"
)

const version = "0.1.0"

// app is what every subcommand runs against.
type app struct {
	cfg        *config.Config
	configPath string
	svc        *commands.Service
	logger     *logging.Logger
	stdout     io.Writer
	stderr     io.Writer
}

// newLogger opens the session log. Tests replace it.
var newLogger = func(cfg *config.Config) *logging.Logger {
	logging.SetDirectory(cfg.LogDir)
	// On error NewLogger still returns a stderr logger
	logger, _ := logging.NewLogger("folish")
	return logger
}

func main() {
	log.SetFlags(0)

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case err != nil:
		log.Fatalf("folish: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("folish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the config file (default: <user config dir>/folish/config.yaml)")
	baseDir := fs.String("base-dir", "", "Project directory (overrides config and FOLISH_BASE_DIR)")
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "folish v%s\n", version)
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	if *configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		*configPath = p
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if *baseDir != "" {
		cfg.BaseDir = *baseDir
	}

	logger := newLogger(cfg)
	defer logger.Close()

	store, err := projectstore.NewFromConfig(cfg, projectstore.WithLogger(logger.With("store")))
	if err != nil {
		return err
	}

	a := &app{
		cfg:        cfg,
		configPath: *configPath,
		svc:        commands.NewService(store, logger.With("commands")),
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	sub, ok := subcommands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}
	return sub.run(ctx, a, rest)
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "folish - canvas project tool\n\n")
	fmt.Fprintf(w, "Usage: folish [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range subcommandOrder {
		fmt.Fprintf(w, "  %-28s %s\n", subcommands[name].usage, subcommands[name].help)
	}
	fmt.Fprintf(w, "\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nEnvironment Variables:\n")
	fmt.Fprintf(w, "  FOLISH_BASE_DIR              Project directory\n")
	fmt.Fprintf(w, "  FOLISH_LOG_DIR               Session log directory\n")
	fmt.Fprintf(w, "  FOLISH_COMPRESSION_QUALITY   Brotli quality, 0-11\n")
	fmt.Fprintf(w, "  FOLISH_SERVER_ADDR           Listen address for serve\n")
}
