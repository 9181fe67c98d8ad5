package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/securely/surfacemap/pkg/analysis"
	"github.com/securely/surfacemap/pkg/breach"
	"github.com/securely/surfacemap/pkg/builder"
	"github.com/securely/surfacemap/pkg/config"
	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/metrics"
	"github.com/securely/surfacemap/pkg/narrative"
	"github.com/securely/surfacemap/pkg/output"
	"github.com/securely/surfacemap/pkg/render"
	"github.com/securely/surfacemap/pkg/view"
	"github.com/securely/surfacemap/pkg/watcher"
	"github.com/securely/surfacemap/pkg/web"
)

func main() {
	// Parse command-line flags
	f := pflag.NewFlagSet("surfacemap", pflag.ExitOnError)
	f.String("email", "", "Email address to analyse")
	f.String("breaches", "", "Breach fixture file (JSON or YAML)")
	f.String("breach-url", "", "Breach checker endpoint, used when --breaches is not set")
	f.String("format", "report", "Output: report, svg, html, dot or json")
	f.String("out", "", "Write rendered output to this file instead of stdout")
	f.Int("relax", 300, "Relaxation iterations after placement (0 disables)")
	f.Bool("web", false, "Start web server instead of printing to console")
	f.Int("port", 8080, "Port for web server (only used with --web)")
	f.Bool("open", false, "Open the browser once the web server is up")
	f.Bool("watch", false, "Re-analyse when the breach fixture file changes")
	f.String("verbosity", "", "Log level: trace, debug, info, warn or error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	_ = f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := newSource(cfg)
	if err != nil {
		logging.Fatal("no breach source", "error", err)
	}
	if cfg.Watch && cfg.Breaches == "" {
		logging.Fatal("--watch needs a --breaches fixture file")
	}

	if cfg.WebMode {
		err = runWeb(ctx, cfg, source)
	} else {
		err = runCLI(ctx, cfg, source)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal("surfacemap failed", "error", err)
	}
}

func newSource(cfg *config.Config) (breach.Source, error) {
	var src breach.Source
	switch {
	case cfg.Breaches != "":
		src = breach.NewFileSource(cfg.Breaches)
	case cfg.BreachURL != "":
		src = breach.NewHTTPSource(cfg.BreachURL,
			breach.WithTimeout(cfg.Lookup.Timeout),
			breach.WithRetries(cfg.Lookup.Retries, cfg.Lookup.Backoff))
	default:
		return nil, fmt.Errorf("set --breaches or --breach-url")
	}
	return breach.Observe(src, metrics.DefaultRegistry()), nil
}

func viewOptions(cfg *config.Config) (view.Options, error) {
	opts := builder.DefaultOptions()
	opts.CompromisePaths = cfg.Builder.CompromisePaths

	b := builder.New(opts)
	if rules := cfg.Builder.AttackRules(); rules != nil {
		b = b.WithRules(rules)
	}
	targets, err := cfg.Builder.TargetList()
	if err != nil {
		return view.Options{}, err
	}
	return view.Options{
		Layout:  cfg.Layout,
		Builder: b,
		Targets: targets,
	}, nil
}

func newNarrator(cfg *config.Config) *narrative.Client {
	return narrative.NewClient(cfg.Narrative.Endpoint, cfg.Narrative.APIKey,
		narrative.WithTimeout(cfg.Narrative.Timeout),
		narrative.WithRecorder(metrics.DefaultRegistry()))
}

// runCLI analyses one identity, prints or renders the result and, with
// --watch, repeats whenever the fixture file changes.
func runCLI(ctx context.Context, cfg *config.Config, source breach.Source) error {
	if cfg.Email == "" {
		return fmt.Errorf("--email is required outside of --web mode")
	}
	format := cfg.Format
	var rf render.Format
	if format != "report" {
		var err error
		if rf, err = render.ParseFormat(format); err != nil {
			return err
		}
	}

	vopts, err := viewOptions(cfg)
	if err != nil {
		return err
	}
	session := view.NewSession("cli", vopts)
	defer session.Close()
	runner := analysis.NewAnalysisRunner(source, nil)
	narrator := newNarrator(cfg)

	once := func(ctx context.Context, reason string) error {
		if _, err := runner.Run(ctx, session, analysis.AnalysisOptions{
			Email: cfg.Email, Relax: cfg.Relax, Reason: reason,
		}); err != nil {
			return err
		}
		if format == "report" {
			return printReport(ctx, session, narrator)
		}
		return renderTo(session, rf, cfg.Out)
	}

	if err := once(ctx, "initial analysis"); err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}

	err = watcher.Watch(ctx, func(ctx context.Context, reason string) {
		if err := once(ctx, reason); err != nil {
			logging.Error("re-analysis failed", "error", err)
		}
	}, 300*time.Millisecond, 2*time.Second, cfg.Breaches)
	if err != nil {
		return err
	}
	logging.Info("watching for fixture changes, press Ctrl+C to stop", "path", cfg.Breaches)
	<-ctx.Done()
	return nil
}

func printReport(ctx context.Context, session *view.Session, narrator narrative.Generator) error {
	snap, err := session.Snapshot()
	if err != nil {
		return err
	}
	summary, err := session.Summary()
	if err != nil {
		return err
	}
	story, err := narrator.Summarize(ctx, snap.Email, session.Records())
	if err != nil {
		return err
	}
	output.PrintRiskReport(os.Stdout, snap, summary, story.Text)
	return nil
}

func renderTo(session *view.Session, f render.Format, path string) error {
	draw := func(w io.Writer) error { return session.Render(f, w, "") }
	if path == "" {
		return draw(os.Stdout)
	}
	if err := writeFile(path, draw); err != nil {
		return err
	}
	logging.Info("wrote attack surface map", "path", path, "format", string(f))
	return nil
}

// createFile opens --out for writing.
var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// writeFile runs write against a freshly created file. A failed Close is
// reported like a failed write: the file may be truncated either way.
func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := createFile(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return write(file)
}

func runWeb(ctx context.Context, cfg *config.Config, source breach.Source) error {
	vopts, err := viewOptions(cfg)
	if err != nil {
		return err
	}
	server := web.NewServer(web.Config{
		Source:       source,
		View:         vopts,
		Narrator:     newNarrator(cfg),
		Metrics:      metrics.DefaultRegistry(),
		DefaultRelax: cfg.Relax,
	})

	if cfg.Watch {
		if err := watcher.Watch(ctx, server.Reanalyze, 300*time.Millisecond, 2*time.Second, cfg.Breaches); err != nil {
			return err
		}
	}

	url := fmt.Sprintf("http://localhost:%d", cfg.Port)
	if cfg.Open {
		go func() {
			// Wait a moment for server to start
			time.Sleep(500 * time.Millisecond)
			openBrowser(url)
		}()
	}

	return server.Start(ctx, cfg.Port)
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
