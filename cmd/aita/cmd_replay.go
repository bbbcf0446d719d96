package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/aita/analyzer"
	"github.com/yairfalse/aita/journal"
	"github.com/yairfalse/aita/report"
	"github.com/yairfalse/aita/session"
	"github.com/yairfalse/aita/storage"
)

var (
	replayJournal      bool
	replayCollectAudit bool
	replayAnalyze      bool
	replayStore        bool
	replayID           string
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [source]",
	Short: "Replay a captured report stream into a session report",
	Long: `Replay a report stream from a file, stdin, or a journal directory.

Every line is parsed and dispatched exactly as during live ingestion,
so a journaled run reproduces the same frozen report the live run
produced. A malformed line stops the replay with the offending line
quoted in the error.`,
	Example: `  aita replay run.report                # Replay a raw capture file
  aita replay - < run.report            # Replay from stdin
  aita replay --journal /var/lib/aita/journal
  aita replay run.report --analyze      # Print violation summary
  aita replay run.report --store --id nightly-42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayJournal, "journal", false, "Treat source as a journal directory")
	replayCmd.Flags().BoolVar(&replayCollectAudit, "collect-audit", false, "Collect the audit access set")
	replayCmd.Flags().BoolVar(&replayAnalyze, "analyze", false, "Print the violation summary instead of raw counts")
	replayCmd.Flags().BoolVar(&replayStore, "store", false, "Persist the frozen report")
	replayCmd.Flags().StringVar(&replayID, "id", "", "Session id to store under (default: timestamp)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	source := cfg.Ingest.Source
	if len(args) == 1 {
		source = args[0]
	}

	b := session.NewBuilder(builderOptions(cfg, replayCollectAudit)...)
	d := report.NewDispatcher(b, report.WithLogger(log.Logger))

	if err := feed(cmd.Context(), d, source, replayJournal); err != nil {
		return err
	}

	rep := b.Freeze()

	if replayStore {
		id := replayID
		if id == "" {
			id = time.Now().Format("run-20060102-150405")
		}
		if err := persistReport(cfg.Storage.Dir, id, rep); err != nil {
			return err
		}
		fmt.Printf("Stored session %s\n", id)
	}

	if replayAnalyze {
		return printJSON(analyzer.New().Analyze(rep))
	}
	return printJSON(reportCounts(rep))
}

// feed pushes every line of the source through the dispatcher.
func feed(ctx context.Context, d *report.Dispatcher, source string, fromJournal bool) error {
	if fromJournal {
		return journal.Replay(source, journal.DefaultConfig().FilePrefix, func(e *journal.Entry) error {
			return d.ProcessLine(e.Line)
		})
	}

	var in io.Reader = os.Stdin
	if source != "-" {
		f, err := os.Open(source) // #nosec G304 -- path is intentional user input
		if err != nil {
			return fmt.Errorf("failed to open report source: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	return report.Pump(ctx, in, d)
}

func persistReport(dir, id string, rep *session.Report) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}
	store, err := storage.NewStore(dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.SaveReport(id, time.Now(), rep)
	return err
}

// runCounts is the default replay output.
type runCounts struct {
	Processes           int      `json:"processes"`
	Surviving           int      `json:"surviving"`
	ExplicitAccesses    int      `json:"explicit_accesses"`
	UnexpectedAccesses  int      `json:"unexpected_accesses"`
	AuditAccesses       int      `json:"audit_accesses"`
	UnexpectedPaths     []string `json:"unexpected_paths,omitempty"`
	MaxDetoursHeapSize  uint64   `json:"max_detours_heap_size"`
	ReadWriteDowngraded bool     `json:"read_write_downgraded"`
}

func reportCounts(rep *session.Report) runCounts {
	return runCounts{
		Processes:           len(rep.Processes),
		Surviving:           len(rep.Surviving),
		ExplicitAccesses:    len(rep.ExplicitAccesses),
		UnexpectedAccesses:  len(rep.UnexpectedAccesses),
		AuditAccesses:       len(rep.AuditAccesses),
		UnexpectedPaths:     rep.UnexpectedPaths(),
		MaxDetoursHeapSize:  rep.MaxDetoursHeapSize,
		ReadWriteDowngraded: rep.ReadWriteDowngraded,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
