// Command tagtree validates tagtree documents against the bundled schemas
// and prints the extension manifest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/container"
	"github.com/reoring/tagtree/convert"
	"github.com/reoring/tagtree/i18n"
	"github.com/reoring/tagtree/internal/metrics"
	"github.com/reoring/tagtree/resource"
	"github.com/reoring/tagtree/validate"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "validate":
		return validateCmd(ctx, args[1:], stdout, stderr)
	case "manifest":
		return manifestCmd(args[1:], stdout, stderr)
	case "schemas":
		return schemasCmd(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `tagtree CLI

Usage:
  tagtree validate [--strict] [--format text|json] [--metrics] <document>
  tagtree manifest [-o file]
  tagtree schemas

Common flags: --config file, --log-level debug|info|warn|error, --lang en|ja

Documents are .yaml, .yml, .json or .cbor files holding
{tagtree_version: 1.0.0, tree: {...}}.

Exit codes: 0 valid, 1 invalid document or internal error, 2 usage error.`)
}

// common holds the flags shared by every subcommand.
type common struct {
	config   string
	logLevel string
	lang     string
}

func addCommon(fs *pflag.FlagSet) *common {
	c := &common{}
	fs.StringVar(&c.config, "config", "", "YAML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&c.lang, "lang", "", "message language: en or ja")
	return c
}

func (c *common) load() (Config, error) {
	cfg, err := loadConfig(c.config)
	if err != nil {
		return cfg, err
	}
	if c.logLevel != "" {
		if _, err := parseLevel(c.logLevel); err != nil {
			return cfg, err
		}
		cfg.LogLevel = c.logLevel
	}
	if c.lang != "" {
		cfg.Language = c.lang
	}
	return cfg, nil
}

func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return 0, true
}

// env is the wiring shared by the subcommands.
type env struct {
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	resolver *resource.Resolver
	ext      *tagtree.Extension
}

func newEnv(cfg Config, stderr io.Writer) *env {
	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	i18n.SetLanguage(cfg.Language)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	opts := []resource.Option{resource.WithLogger(logger), resource.WithMetrics(m)}
	for _, d := range cfg.SchemaDirs {
		opts = append(opts, resource.WithSource(resource.NewFSStore(os.DirFS(d.Dir), resource.Mount{Prefix: d.Prefix, Dir: "."})))
	}
	if cfg.Remote.Enabled {
		opts = append(opts, resource.WithSource(resource.NewHTTPFetcher(cfg.Remote.Timeout, cfg.Remote.Prefixes...)))
		opts = append(opts, resource.WithTimeout(cfg.Remote.Timeout))
	}
	r := convert.NewResolver(opts...)
	return &env{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		resolver: r,
		ext: tagtree.NewExtension(func() (*tagtree.Manifest, error) {
			return convert.NewManifest(r)
		}),
	}
}

func (e *env) manifest(stderr io.Writer) (*tagtree.Manifest, bool) {
	m, err := e.ext.Manifest()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", i18n.T(tagtree.CodeInternal, nil), err)
		return nil, false
	}
	return m, true
}

func validateCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	strict := fs.Bool("strict", false, "stop at the first problem")
	format := fs.String("format", "text", "report format: text or json")
	showMetrics := fs.Bool("metrics", false, "print collected metrics to stderr")
	c := addCommon(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "validate: expected exactly one document")
		return exitUsage
	}
	out, err := newReportWriter(*format)
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}
	if fs.Changed("strict") {
		cfg.Strict = *strict
	}

	e := newEnv(cfg, stderr)
	m, ok := e.manifest(stderr)
	if !ok {
		return exitInvalid
	}
	file := fs.Arg(0)
	doc, err := container.ReadFile(file)
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}

	gate := validate.New(e.resolver,
		validate.WithStrict(cfg.Strict),
		validate.WithLogger(e.logger),
		validate.WithMetrics(e.metrics))
	session, err := tagtree.NewSession(m, gate,
		tagtree.WithLogger(e.logger),
		tagtree.WithMetrics(e.metrics),
		tagtree.WithParallel(runtime.GOMAXPROCS(0)))
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", i18n.T(tagtree.CodeInternal, nil), err)
		return exitInvalid
	}

	ctx = tagtree.WithFailFast(ctx, cfg.Strict)
	report := session.Check(ctx, doc)
	if report.Valid() || !cfg.Strict {
		// Cross-field invariants only surface during conversion.
		_, loaded := session.Load(ctx, doc)
		report = report.Merge(loaded)
	}
	e.logger.Info("validated document", "file", file, "status", report.Status.String(), "problems", len(report.Problems))
	if err := out.write(stdout, file, report); err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitInvalid
	}
	if *showMetrics {
		if err := writeMetrics(stderr, e.registry); err != nil {
			fmt.Fprintf(stderr, "validate: metrics: %v\n", err)
		}
	}
	if !report.Valid() {
		return exitInvalid
	}
	return exitOK
}

func manifestCmd(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("manifest", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.StringP("output", "o", "", "write the manifest to this file instead of stdout")
	c := addCommon(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "manifest: %v\n", err)
		return exitUsage
	}
	m, ok := newEnv(cfg, stderr).manifest(stderr)
	if !ok {
		return exitInvalid
	}
	data, err := m.YAML()
	if err != nil {
		fmt.Fprintf(stderr, "manifest: %v\n", err)
		return exitInvalid
	}
	if *output == "" {
		_, err = stdout.Write(data)
	} else {
		err = os.WriteFile(*output, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(stderr, "manifest: %v\n", err)
		return exitInvalid
	}
	return exitOK
}

func schemasCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("schemas", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	c := addCommon(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "schemas: %v\n", err)
		return exitUsage
	}
	e := newEnv(cfg, stderr)
	uris, err := e.resolver.URIs()
	if err != nil {
		fmt.Fprintf(stderr, "schemas: %v\n", err)
		return exitInvalid
	}
	code := exitOK
	for _, uri := range uris {
		s, err := e.resolver.Resolve(ctx, uri)
		if err != nil {
			fmt.Fprintf(stderr, "schemas: %v\n", err)
			code = exitInvalid
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", uri, s.Digest())
	}
	return code
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
