// Package main is an offline tool that projects a datafile and prints the
// resulting configuration view as JSON.
//
//	flagscope --datafile datafile.json --section features --pretty
//	cat datafile.json | flagscope --section revision
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/projection"
	"github.com/rafaeljc/flagscope/internal/viewer"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var sections = []string{"config", "experiments", "features", "audiences", "attributes", "events", "revision", "datafile"}

type options struct {
	datafile string
	section  string
	pretty   bool
	logLevel string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := options{}

	fs := pflag.NewFlagSet("flagscope", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.datafile, "datafile", "f", "-", "Path to the datafile. Use - to read from stdin.")
	fs.StringVarP(&opts.section, "section", "s", "config", fmt.Sprintf("Part of the view to print, one of %v.", sections))
	fs.BoolVarP(&opts.pretty, "pretty", "p", false, "Indent the JSON output.")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Level for diagnostics written to stderr.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if !slices.Contains(sections, opts.section) {
		fmt.Fprintf(stderr, "error: unknown section %q, expected one of %v\n", opts.section, sections)
		return exitUsage
	}

	log := logger.NewWithWriter(&config.AppConfig{
		Name:        "flagscope",
		Version:     "cli",
		Environment: config.EnvironmentProduction,
		LogLevel:    opts.logLevel,
		LogFormat:   "text",
	}, stderr)

	doc, err := readDatafile(opts.datafile, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	view, err := viewer.Build(log, doc)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	if opts.section == "datafile" {
		fmt.Fprintln(stdout, view.Datafile())
		return exitOK
	}

	out, err := selectSection(view, opts.section)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	enc := json.NewEncoder(stdout)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "error: failed to encode output: %v\n", err)
		return exitError
	}
	return exitOK
}

func readDatafile(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		doc, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return doc, nil
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datafile: %w", err)
	}
	return doc, nil
}

func selectSection(view *projection.ConfigView, section string) (any, error) {
	switch section {
	case "config":
		return view, nil
	case "experiments":
		return view.ExperimentsMap, nil
	case "features":
		return view.FeaturesMap, nil
	case "audiences":
		return view.Audiences, nil
	case "attributes":
		return view.Attributes, nil
	case "events":
		return view.Events, nil
	case "revision":
		return map[string]string{
			"revision":       view.Revision,
			"sdkKey":         view.SDKKey,
			"environmentKey": view.EnvironmentKey,
		}, nil
	default:
		return nil, fmt.Errorf("unknown section %q, expected one of %v", section, sections)
	}
}
