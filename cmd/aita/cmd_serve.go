package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/aita/config"
	"github.com/yairfalse/aita/journal"
	"github.com/yairfalse/aita/report"
	"github.com/yairfalse/aita/session"
	"github.com/yairfalse/aita/telemetry"
)

var serveID string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ingest a live report stream and persist the frozen session",
	Long: `Ingest the report stream of one sandboxed run as it happens.

The stream source comes from config (a FIFO the monitor writes to, or
"-" for stdin). Lines are optionally journaled for later replay, then
parsed, correlated, and classified. When the stream ends the session is
frozen and persisted. Prometheus metrics are served on /metrics for the
duration of the run.`,
	Example: `  aita serve                           # Source and dirs from defaults
  aita serve --config aita.yaml        # Production config
  aita serve --id nightly-42           # Explicit session id`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveID, "id", "", "Session id to store under (default: timestamp)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTELEndpoint:   cfg.Telemetry.OTELEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	in, closeIn, err := openSource(cfg.Ingest.Source)
	if err != nil {
		return err
	}

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jcfg := journalConfig(cfg)
		if err := os.MkdirAll(cfg.Journal.Dir, 0750); err != nil {
			return fmt.Errorf("failed to create journal dir: %w", err)
		}
		jnl, err = journal.OpenWithConfig(cfg.Journal.Dir, jcfg)
		if err != nil {
			closeIn()
			return err
		}
		defer func() { _ = jnl.Close() }()
	}

	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	addMetricsServer(&g, cfg.Telemetry.MetricsAddr)

	if cfg.Journal.Enabled {
		addJournalCleanup(&g, cfg)
	}

	// Ingest actor: consume the stream, freeze and persist on EOF.
	g.Add(func() error {
		return ingest(ctx, cfg, in, jnl)
	}, func(error) {
		closeIn()
		cancel()
	})

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// openSource opens the configured stream; "-" means stdin.
func openSource(source string) (io.Reader, func(), error) {
	if source == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(source) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report source: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func journalConfig(cfg *config.Config) journal.Config {
	jcfg := journal.DefaultConfig()
	if cfg.Journal.MaxFileSize > 0 {
		jcfg.MaxFileSize = cfg.Journal.MaxFileSize
	}
	if cfg.Journal.RetentionDays > 0 {
		jcfg.RetentionDays = cfg.Journal.RetentionDays
	}
	return jcfg
}

// ingest runs the whole session: pump lines, freeze, persist.
func ingest(ctx context.Context, cfg *config.Config, in io.Reader, jnl *journal.Journal) error {
	logger := telemetry.NewLogger(cfg.Telemetry.ServiceName)
	logger.LogIngestStart(ctx, cfg.Ingest.Source)

	b := session.NewBuilder(builderOptions(cfg, false)...)
	d := report.NewDispatcher(b, report.WithLogger(log.Logger))

	start := time.Now()
	lines, err := pump(ctx, in, d, jnl)
	telemetry.IngestDuration.Record(ctx, time.Since(start).Seconds())
	logger.LogIngestEnd(ctx, cfg.Ingest.Source, lines, err)
	if err != nil {
		return err
	}

	rep := b.Freeze()

	id := serveID
	if id == "" {
		id = time.Now().Format("run-20060102-150405")
	}
	if err := persistReport(cfg.Storage.Dir, id, rep); err != nil {
		return err
	}

	log.Info().
		Str("session", id).
		Int("processes", len(rep.Processes)).
		Int("unexpected", len(rep.UnexpectedAccesses)).
		Msg("session frozen and stored")
	return nil
}

// pump reads report lines, journaling each before dispatch so a crash
// mid-run still leaves a replayable capture.
func pump(ctx context.Context, in io.Reader, d *report.Dispatcher, jnl *journal.Journal) (int64, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines int64
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return lines, ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		if jnl != nil {
			if err := jnl.Append(line); err != nil {
				return lines, err
			}
		}
		if err := d.ProcessLine(line); err != nil {
			return lines, err
		}
		lines++
	}
	return lines, scanner.Err()
}

// addMetricsServer registers the Prometheus endpoint actor.
func addMetricsServer(g *run.Group, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Add(func() error {
		log.Info().Str("addr", addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	})
}

// addJournalCleanup registers the retention sweep actor.
func addJournalCleanup(g *run.Group, cfg *config.Config) {
	every := cfg.Journal.CleanupEvery
	if every <= 0 {
		every = time.Hour
	}
	done := make(chan struct{})

	g.Add(func() error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := journal.Cleanup(cfg.Journal.Dir, journalConfig(cfg)); err != nil {
					log.Warn().Err(err).Msg("journal cleanup failed")
				}
			case <-done:
				return nil
			}
		}
	}, func(error) {
		close(done)
	})
}
