// Package analyzer derives run-level findings from a frozen aggregation
// report: which paths were touched unexpectedly, which processes did
// the touching, and where monitoring coverage had gaps.
package analyzer

import (
	"sort"

	"github.com/yairfalse/aita/session"
	"github.com/yairfalse/aita/types"
)

// PathHits counts how often one path showed up in a set.
type PathHits struct {
	Path string `json:"path"`
	Hits int    `json:"hits"`
}

// ProcessActivity summarizes one process's observed behavior.
type ProcessActivity struct {
	PID        uint32 `json:"pid"`
	Path       string `json:"path"`
	Accesses   int    `json:"accesses"`
	Unexpected int    `json:"unexpected"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	ExitCode   uint32 `json:"exit_code"`
	Survived   bool   `json:"survived"`
}

// Summary is the analyzer's view of a whole run.
type Summary struct {
	Processes           int                     `json:"processes"`
	SurvivingPids       []uint32                `json:"surviving_pids,omitempty"`
	UnexpectedByPath    []PathHits              `json:"unexpected_by_path,omitempty"`
	TopProcesses        []ProcessActivity       `json:"top_processes,omitempty"`
	UnmonitoredChildren []types.DetouringStatus `json:"unmonitored_children,omitempty"`
	ReadWriteDowngraded bool                    `json:"read_write_downgraded"`
	MaxDetoursHeapSize  uint64                  `json:"max_detours_heap_size"`
}

// Analyzer inspects frozen reports.
type Analyzer struct {
	// TopN bounds the per-process ranking; zero means all.
	TopN int
}

// New creates an analyzer with default settings.
func New() *Analyzer {
	return &Analyzer{TopN: 10}
}

// Analyze builds a run summary from a frozen report. The report is
// only read, never mutated.
func (a *Analyzer) Analyze(rep *session.Report) Summary {
	s := Summary{
		Processes:           len(rep.Processes),
		UnexpectedByPath:    unexpectedByPath(rep),
		UnmonitoredChildren: rep.FailedInjections(),
		ReadWriteDowngraded: rep.ReadWriteDowngraded,
		MaxDetoursHeapSize:  rep.MaxDetoursHeapSize,
	}

	for _, p := range rep.Surviving {
		s.SurvivingPids = append(s.SurvivingPids, p.PID)
	}

	s.TopProcesses = a.rankProcesses(rep)
	return s
}

// unexpectedByPath groups the unexpected set by resolved path.
func unexpectedByPath(rep *session.Report) []PathHits {
	counts := make(map[string]int)
	for a := range rep.UnexpectedAccesses {
		path := a.Path
		if path == "" {
			continue
		}
		counts[path]++
	}

	out := make([]PathHits, 0, len(counts))
	for path, hits := range counts {
		out = append(out, PathHits{Path: path, Hits: hits})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// rankProcesses orders processes by how much they touched, unexpected
// accesses first.
func (a *Analyzer) rankProcesses(rep *session.Report) []ProcessActivity {
	byProc := make(map[*types.Process]*ProcessActivity)
	for _, p := range rep.Processes {
		byProc[p] = &ProcessActivity{
			PID:        p.PID,
			Path:       p.Path,
			ReadBytes:  p.IO.Read.TransferCount,
			WriteBytes: p.IO.Write.TransferCount,
			ExitCode:   p.ExitCode,
		}
	}
	for _, p := range rep.Surviving {
		if act, ok := byProc[p]; ok {
			act.Survived = true
		}
	}

	count := func(set map[types.FileAccess]struct{}, unexpected bool) {
		for access := range set {
			act, ok := byProc[access.Process]
			if !ok {
				continue // placeholder process, not part of the tree
			}
			act.Accesses++
			if unexpected {
				act.Unexpected++
			}
		}
	}
	count(rep.ExplicitAccesses, false)
	count(rep.UnexpectedAccesses, true)

	out := make([]ProcessActivity, 0, len(byProc))
	for _, act := range byProc {
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unexpected != out[j].Unexpected {
			return out[i].Unexpected > out[j].Unexpected
		}
		if out[i].Accesses != out[j].Accesses {
			return out[i].Accesses > out[j].Accesses
		}
		return out[i].PID < out[j].PID
	})

	if a.TopN > 0 && len(out) > a.TopN {
		out = out[:a.TopN]
	}
	return out
}
