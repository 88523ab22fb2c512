package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "run":
		return runCommand(args[2:])
	case "repl":
		return replCommand(args[2:])
	case "lint":
		return lintCommand(args[2:])
	case "fmt":
		return fmtCommand(args[2:])
	case "watch":
		return watchCommand(args[2:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	common := registerCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("vibemeta run: script path required")
	}
	cfg, err := common.load(os.Stderr)
	if err != nil {
		return err
	}
	scriptPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}
	if err := runGraphFile(context.Background(), scriptPath, os.Stdout, cfg); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath *string
	verbose    *bool
}

func registerCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "path to a TOML config file"),
		verbose:    fs.Bool("v", false, "enable debug logging"),
	}
}

// load reads the config and installs the process logger writing to logOut.
func (c commonFlags) load(logOut io.Writer) (*cliConfig, error) {
	cfg, err := loadConfig(*c.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.logLevel()
	if *c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Debug("config loaded", "path", *c.configPath, "hash_buckets", cfg.Runtime.HashBuckets)
	return cfg, nil
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags] [args]\n", prog)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run <script>      execute a graph script and print its queries")
	fmt.Fprintln(os.Stderr, "  repl              start an interactive graph session")
	fmt.Fprintln(os.Stderr, "  lint <script>     report statements that fail or look suspicious")
	fmt.Fprintln(os.Stderr, "  fmt <path>        rewrite .vmeta files in canonical form")
	fmt.Fprintln(os.Stderr, "  watch <script>    re-run a script whenever it changes")
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  -config string")
	fmt.Fprintln(os.Stderr, "    path to a TOML config file")
	fmt.Fprintln(os.Stderr, "  -v")
	fmt.Fprintln(os.Stderr, "    enable debug logging")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}
