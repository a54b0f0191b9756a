package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ardanlabs/bindgen/config"
	"github.com/ardanlabs/bindgen/generator"
	"github.com/ardanlabs/bindgen/logger"
	"github.com/ardanlabs/bindgen/parser"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `bindgen - generate V and Odin bindings from C headers

Usage:
    bindgen [flags] config <file>     Write an example configuration
    bindgen [flags] generate <file>   Generate bindings from a configuration
    bindgen [flags] watch <file>      Generate, then regenerate on changes

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	level := flag.String("log-level", "info", "log level: debug, info, warn or error")
	format := flag.String("log-format", "text", "log format: text or json")
	flag.Usage = usage
	flag.Parse()

	lvl, err := logger.ParseLevel(*level)
	if err != nil || (*format != "text" && *format != "json") || flag.NArg() != 2 {
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		usage()
		os.Exit(2)
	}

	cfg := logger.DefaultConfig()
	cfg.Level = lvl
	cfg.Format = *format
	log := logger.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, path := flag.Arg(0), flag.Arg(1)

	switch cmd {
	case "config":
		err = writeExample(path)
	case "generate":
		_, err = generate(log, path)
	case "watch":
		err = watch(ctx, log, path)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("bindgen failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func writeExample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	if err := config.Example().Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// generate runs the whole pipeline for the configuration at path and writes
// the output. It returns every header that was parsed.
func generate(log *slog.Logger, path string) ([]string, error) {
	logger.LogPhase(log, "config", "path", path)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}

	headers, err := cfg.ResolveFiles()
	if err != nil {
		return nil, err
	}
	logger.LogPhaseComplete(log, "config", "target", d.Name, "headers", len(headers))

	logger.LogPhase(log, "parse")
	comp, err := parser.ParseFiles(headers, cfg.ParserOptions())
	if err != nil {
		return nil, err
	}
	logger.LogPhaseComplete(log, "parse",
		"files", len(comp.Files),
		"functions", len(comp.Functions),
		"enums", len(comp.Enums),
		"records", len(comp.Records))

	logger.LogPhase(log, "generate")
	res, err := generator.New(cfg, d, comp).Generate()
	if err != nil {
		return nil, fmt.Errorf("generating: %w", err)
	}
	res.Diagnostics.Log(log)
	if res.Diagnostics.HasErrors() {
		log.Warn("some bindings may be wrong, see the errors above")
	}
	logger.LogPhaseComplete(log, "generate", "files", len(res.Files), "diagnostics", len(res.Diagnostics))

	if err := writeFiles(cfg.DstDir, res.Files); err != nil {
		return nil, err
	}

	for name := range res.Files {
		log.Info("generated", "file", filepath.Join(cfg.DstDir, name))
	}

	return comp.Files, nil
}

func writeFiles(dir string, files map[string]string) error {
	if len(files) == 0 {
		return errors.New("nothing to write")
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	return nil
}
