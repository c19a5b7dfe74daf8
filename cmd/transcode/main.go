// transcode pipes stdin through one or more transcoder processes to stdout.
//
// Usage:
//
//	transcode [flags] -- <command> [args...]
//	transcode [flags] --profile <name> [--var k=v ...]
//	transcode --list
//
// Profiles are read from --config or TRANSCODE_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/thadeu/go-transcode"
	"github.com/thadeu/go-transcode/profile"
)

type flags struct {
	config       string
	profile      string
	vars         []string
	list         bool
	pipeSize     int
	waitTimeout  time.Duration
	processGroup bool
	tempFile     string
	debug        bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, command, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "transcode: %v\n", err)
		return 2
	}

	logLevel := slog.LevelInfo
	if f.debug || os.Getenv("TRANSCODE_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, f, command, stdin, stdout, stderr, logger); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(stderr, "transcode: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (flags, []string, error) {
	var f flags
	fs := pflag.NewFlagSet("transcode", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.config, "config", "c", os.Getenv(profile.ConfigEnv), "profile config file")
	fs.StringVarP(&f.profile, "profile", "p", "", "profile to run")
	fs.StringArrayVarP(&f.vars, "var", "V", nil, "profile variable as key=value (repeatable)")
	fs.BoolVar(&f.list, "list", false, "list profiles and exit")
	fs.IntVar(&f.pipeSize, "pipe-size", transcode.DefaultPipeSize, "relay pipe capacity in bytes")
	fs.DurationVar(&f.waitTimeout, "wait-timeout", 0, "how long close waits before killing (0 = forever)")
	fs.BoolVar(&f.processGroup, "process-group", false, "kill the whole process group on close")
	fs.StringVar(&f.tempFile, "temp-file", "", "accepted for compatibility, ignored")
	fs.BoolVar(&f.debug, "debug", false, "log transcoder diagnostics")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  transcode [flags] -- <command> [args...]\n  transcode [flags] --profile <name> [--var k=v ...]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}

	command := fs.Args()
	switch {
	case f.list:
		if f.config == "" {
			return f, nil, fmt.Errorf("--list requires --config or %s", profile.ConfigEnv)
		}
	case f.profile != "" && len(command) > 0:
		return f, nil, errors.New("use either --profile or a command, not both")
	case f.profile == "" && len(command) == 0:
		fs.Usage()
		return f, nil, errors.New("no command or profile given")
	case f.profile != "" && f.config == "":
		return f, nil, fmt.Errorf("--profile requires --config or %s", profile.ConfigEnv)
	}
	return f, command, nil
}

func execute(ctx context.Context, f flags, command []string, stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) error {
	opts := transcode.DefaultOptions()
	opts.Logger = logger
	opts.PipeSize = f.pipeSize
	opts.WaitTimeout = f.waitTimeout
	opts.KillProcessGroup = f.processGroup
	opts.TempFile = f.tempFile

	if len(command) > 0 {
		cmd := exec.Command(command[0], command[1:]...)
		_, err := transcode.Transcode(ctx, stdout, cmd, stdin, opts)
		return err
	}

	cfg, err := profile.Load(f.config)
	if err != nil {
		return err
	}
	if f.list {
		listProfiles(cfg, stdout)
		return nil
	}

	p, err := cfg.Lookup(f.profile)
	if err != nil {
		return err
	}
	vars, err := parseVars(f.vars)
	if err != nil {
		return err
	}

	chain, err := p.OpenChain(stdin, vars, opts)
	if err != nil {
		return err
	}
	_, err = transcode.Copy(ctx, stdout, chain)
	return err
}

func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || len(key) != 1 {
			return nil, fmt.Errorf("invalid --var %q: want a single-letter key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func listProfiles(cfg *profile.Config, w io.Writer) {
	names := make([]string, 0, len(cfg.Profiles))
	byName := make(map[string]profile.Profile, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		names = append(names, p.Name)
		byName[p.Name] = p
	}
	sort.Strings(names)

	for _, name := range names {
		p := byName[name]
		fmt.Fprintf(w, "%s\t%s -> %s\t%d step(s)\n", name, strings.Join(p.Source, ","), p.Target, len(p.Steps))
	}
}
