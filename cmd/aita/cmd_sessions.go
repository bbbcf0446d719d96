package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/aita/storage"
)

var sessionsFull bool

// sessionsCmd groups the stored-session subcommands
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored session reports",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored session",
	Long: `Show a stored session: its summary, the processes of the run, and
the unexpected accesses grouped by path.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	sessionsShowCmd.Flags().BoolVar(&sessionsFull, "full", false, "Dump the full record as JSON")
}

func openStore() (*storage.Store, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewStore(cfg.Storage.Dir)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	list := store.ListSessions()
	if len(list) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECORDED\tPROCS\tSURVIVING\tEXPLICIT\tUNEXPECTED\tAUDIT\tFAILED INJ")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.ID,
			s.Recorded.Format("2006-01-02 15:04:05"),
			s.Processes,
			s.Surviving,
			s.ExplicitAccesses,
			s.UnexpectedAccesses,
			s.AuditAccesses,
			s.FailedInjections,
		)
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.GetSession(args[0])
	if err != nil {
		return err
	}

	if sessionsFull {
		return printJSON(rec)
	}

	s := rec.Summary
	fmt.Printf("Session %s (recorded %s)\n", s.ID, s.Recorded.Format("2006-01-02 15:04:05"))
	fmt.Printf("  processes: %d (%d surviving)\n", s.Processes, s.Surviving)
	fmt.Printf("  accesses: %d explicit, %d unexpected, %d audit\n",
		s.ExplicitAccesses, s.UnexpectedAccesses, s.AuditAccesses)
	fmt.Printf("  failed injections: %d\n", s.FailedInjections)
	fmt.Printf("  detours heap high-water: %d bytes\n", s.MaxDetoursHeapSize)
	if s.ReadWriteDowngraded {
		fmt.Println("  note: some read/write accesses were downgraded to read")
	}

	if len(rec.Processes) > 0 {
		fmt.Println("\nProcesses:")
		for _, p := range rec.Processes {
			fmt.Printf("  %6d  %s  exit=%d\n", p.PID, p.Path, p.ExitCode)
		}
	}

	if len(rec.Unexpected) > 0 {
		fmt.Println("\nUnexpected accesses:")
		hits := make(map[string]int)
		var order []string
		for _, a := range rec.Unexpected {
			if a.Path == "" {
				continue
			}
			if hits[a.Path] == 0 {
				order = append(order, a.Path)
			}
			hits[a.Path]++
		}
		for _, path := range order {
			fmt.Printf("  %4dx  %s\n", hits[path], path)
		}
	}
	return nil
}
