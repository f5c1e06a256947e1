package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mizuy/microlisp/pkg/driver"
	"github.com/mizuy/microlisp/pkg/interpreter"
)

const cliToolVersion = "microlisp 0.0.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

type options struct {
	configPath string
	depth      int
	noPrelude  bool
	stats      bool
	version    bool
	file       string
}

func run(args []string) int {
	opts, code, ok := parseArgs(args)
	if !ok {
		return code
	}
	if opts.version {
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if opts.depth != 0 {
		cfg.MaxDepth = opts.depth
	}

	interp := interpreter.NewWithOptions(interpreter.Options{MaxDepth: cfg.MaxDepth})
	if !opts.noPrelude {
		if err := driver.LoadPrelude(interp, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load prelude: %v\n", err)
			return 1
		}
	}

	var session *driver.Session
	switch {
	case opts.file != "":
		file, err := os.Open(opts.file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", opts.file, err)
			return 1
		}
		defer file.Close()
		session = driver.NewSession(interp, file, os.Stdout, os.Stderr, cfg.Prompt)
	case driver.Interactive():
		term, err := driver.OpenTerminal(cfg.HistoryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		defer func() {
			if err := term.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}()
		// The line editor prints the prompt itself.
		session = driver.NewSession(interp, term.Input(cfg.Prompt, cfg.ContinuationPrompt), os.Stdout, os.Stderr, "")
	default:
		session = driver.NewSession(interp, os.Stdin, os.Stdout, os.Stderr, cfg.Prompt)
	}

	runErr := session.Run()
	if opts.stats {
		fmt.Fprintln(os.Stderr, session.Stats())
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}
	return 0
}

// parseArgs returns the parsed options, or ok=false with the exit code to use.
func parseArgs(args []string) (options, int, bool) {
	var opts options
	fs := flag.NewFlagSet("microlisp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", "", "path to "+driver.ConfigFileName)
	fs.IntVar(&opts.depth, "depth", 0, "maximum evaluation depth")
	fs.BoolVar(&opts.noPrelude, "no-prelude", false, "skip prelude sources")
	fs.BoolVar(&opts.stats, "stats", false, "report session statistics on exit")
	fs.BoolVar(&opts.version, "version", false, "print the version")
	fs.BoolVar(&opts.version, "V", false, "print the version")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(fs)
			return opts, 0, false
		}
		fmt.Fprintln(os.Stderr, err)
		printUsage(fs)
		return opts, 1, false
	}
	if opts.depth < 0 {
		fmt.Fprintf(os.Stderr, "--depth must be positive, got %d\n", opts.depth)
		return opts, 1, false
	}
	switch fs.NArg() {
	case 0:
	case 1:
		opts.file = fs.Arg(0)
	default:
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", fs.Args()[1:])
		printUsage(fs)
		return opts, 1, false
	}
	return opts, 0, true
}

func loadConfig(explicit string) (*driver.Config, error) {
	if explicit != "" {
		return driver.LoadConfig(explicit)
	}
	path, err := driver.FindConfig(".")
	if errors.Is(err, driver.ErrConfigNotFound) {
		return driver.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return driver.LoadConfig(path)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  microlisp [options] [file]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Reads expressions from file, or standard input when no file is given.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fs.SetOutput(os.Stderr)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}
