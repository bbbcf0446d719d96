// Package storage persists frozen aggregation reports in bbolt so runs
// can be listed and re-examined after the fact.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/aita/session"
	"github.com/yairfalse/aita/types"
)

// Bucket names in bbolt
var (
	bucketSessions = []byte("sessions")
	bucketMeta     = []byte("meta")
)

var keyRevision = []byte("revision")

// SessionSummary is the index row kept per stored session.
type SessionSummary struct {
	ID                  string    `json:"id"`
	Recorded            time.Time `json:"recorded"`
	Processes           int       `json:"processes"`
	Surviving           int       `json:"surviving"`
	ExplicitAccesses    int       `json:"explicit_accesses"`
	UnexpectedAccesses  int       `json:"unexpected_accesses"`
	AuditAccesses       int       `json:"audit_accesses"`
	FailedInjections    int       `json:"failed_injections"`
	MaxDetoursHeapSize  uint64    `json:"max_detours_heap_size"`
	ReadWriteDowngraded bool      `json:"read_write_downgraded"`
}

// StoredAccess is the serialized form of one classified access; the
// owning process is referenced by pid instead of pointer.
type StoredAccess struct {
	Operation           string `json:"operation"`
	PID                 uint32 `json:"pid"`
	RequestedAccess     uint32 `json:"requested_access"`
	Status              uint32 `json:"status"`
	ExplicitlyReported  bool   `json:"explicitly_reported"`
	Error               uint32 `json:"error"`
	USN                 uint64 `json:"usn"`
	DesiredAccess       uint32 `json:"desired_access"`
	ShareMode           uint32 `json:"share_mode"`
	CreationDisposition uint32 `json:"creation_disposition"`
	FlagsAndAttributes  uint32 `json:"flags_and_attributes"`
	ManifestPath        uint32 `json:"manifest_path"`
	Path                string `json:"path,omitempty"`
	EnumeratePattern    string `json:"enumerate_pattern,omitempty"`
}

// SessionRecord is the full persisted form of one session.
type SessionRecord struct {
	Summary           SessionSummary          `json:"summary"`
	Processes         []*types.Process        `json:"processes"`
	Explicit          []StoredAccess          `json:"explicit"`
	Unexpected        []StoredAccess          `json:"unexpected"`
	Audit             []StoredAccess          `json:"audit"`
	DetouringStatuses []types.DetouringStatus `json:"detouring_statuses"`
}

// Store keeps session records on disk with an in-memory index for fast
// listing.
type Store struct {
	mu sync.RWMutex

	// In-memory index ordered by session id
	index *btree.BTreeG[*SessionSummary]

	// On-disk storage
	db *bbolt.DB

	dir string
}

// NewStore opens (or creates) a store in dir.
func NewStore(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "aita.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSessions, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		index: btree.NewG[*SessionSummary](32, func(a, b *SessionSummary) bool {
			return a.ID < b.ID
		}),
		db:  db,
		dir: dir,
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebuildIndex loads every stored summary into the btree.
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt session record: %w", err)
			}
			summary := rec.Summary
			s.index.ReplaceOrInsert(&summary)
			return nil
		})
	})
}

// SaveReport persists a frozen report under id.
func (s *Store) SaveReport(id string, recorded time.Time, rep *session.Report) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := recordFromReport(id, recorded, rep)

	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSessions).Put([]byte(id), value); err != nil {
			return err
		}
		return bumpRevision(tx)
	})
	if err != nil {
		return nil, err
	}

	summary := rec.Summary
	s.index.ReplaceOrInsert(&summary)
	return &summary, nil
}

// GetSession loads the full record stored under id.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSessions).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("session %q not found", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSessions returns every stored summary in id order.
func (s *Store) ListSessions() []*SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*SessionSummary, 0, s.index.Len())
	s.index.Ascend(func(item *SessionSummary) bool {
		copied := *item
		out = append(out, &copied)
		return true
	})
	return out
}

// Revision returns the number of writes the store has seen over its
// lifetime, across reopens.
func (s *Store) Revision() (uint64, error) {
	var rev uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyRevision); len(v) == 8 {
			rev = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return rev, err
}

// bumpRevision increments the persistent write counter.
func bumpRevision(tx *bbolt.Tx) error {
	meta := tx.Bucket(bucketMeta)
	var rev uint64
	if v := meta.Get(keyRevision); len(v) == 8 {
		rev = binary.BigEndian.Uint64(v)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], rev+1)
	return meta.Put(keyRevision, buf[:])
}

// recordFromReport flattens a frozen report into its serialized form.
func recordFromReport(id string, recorded time.Time, rep *session.Report) SessionRecord {
	rec := SessionRecord{
		Summary: SessionSummary{
			ID:                  id,
			Recorded:            recorded,
			Processes:           len(rep.Processes),
			Surviving:           len(rep.Surviving),
			ExplicitAccesses:    len(rep.ExplicitAccesses),
			UnexpectedAccesses:  len(rep.UnexpectedAccesses),
			AuditAccesses:       len(rep.AuditAccesses),
			FailedInjections:    len(rep.FailedInjections()),
			MaxDetoursHeapSize:  rep.MaxDetoursHeapSize,
			ReadWriteDowngraded: rep.ReadWriteDowngraded,
		},
		Processes:         rep.Processes,
		Explicit:          storedAccesses(rep.ExplicitAccesses),
		Unexpected:        storedAccesses(rep.UnexpectedAccesses),
		Audit:             storedAccesses(rep.AuditAccesses),
		DetouringStatuses: rep.DetouringStatuses,
	}
	return rec
}

// storedAccesses converts a classification set into a deterministic,
// sorted slice.
func storedAccesses(set map[types.FileAccess]struct{}) []StoredAccess {
	out := make([]StoredAccess, 0, len(set))
	for a := range set {
		out = append(out, StoredAccess{
			Operation:           a.Operation.String(),
			PID:                 a.Process.PID,
			RequestedAccess:     uint32(a.RequestedAccess),
			Status:              uint32(a.Status),
			ExplicitlyReported:  a.ExplicitlyReported,
			Error:               a.Error,
			USN:                 a.USN,
			DesiredAccess:       a.DesiredAccess,
			ShareMode:           a.ShareMode,
			CreationDisposition: a.CreationDisposition,
			FlagsAndAttributes:  a.FlagsAndAttributes,
			ManifestPath:        uint32(a.ManifestPath),
			Path:                a.Path,
			EnumeratePattern:    a.EnumeratePattern,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].PID != out[j].PID {
			return out[i].PID < out[j].PID
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}
