package types

import "fmt"

// FileAccessStatus is the policy outcome already computed by the
// monitoring agent for one access attempt. This core never decides
// policy; it only carries the decision through classification.
type FileAccessStatus uint32

const (
	// AccessAllowed means the manifest permitted the access.
	AccessAllowed FileAccessStatus = iota
	// AccessDenied means the manifest blocked the access.
	AccessDenied
	// AccessCannotDeterminePolicy means the agent could not match the
	// access against the manifest.
	AccessCannotDeterminePolicy

	maxFileAccessStatus = AccessCannotDeterminePolicy
)

// ValidFileAccessStatus reports whether v decodes to a known status.
func ValidFileAccessStatus(v uint32) bool {
	return v <= uint32(maxFileAccessStatus)
}

// String returns a human-readable status name.
func (s FileAccessStatus) String() string {
	switch s {
	case AccessAllowed:
		return "Allowed"
	case AccessDenied:
		return "Denied"
	case AccessCannotDeterminePolicy:
		return "CannotDeterminePolicy"
	default:
		return fmt.Sprintf("FileAccessStatus(%d)", uint32(s))
	}
}

// RequestedAccess is the level of access requested for a path,
// as classified by the monitoring agent.
type RequestedAccess uint32

const (
	RequestNone  RequestedAccess = 0
	RequestRead  RequestedAccess = 1
	RequestWrite RequestedAccess = 2
	// RequestProbe is metadata-only interest in a path (existence,
	// attributes) with no data transfer.
	RequestProbe RequestedAccess = 4
	// RequestEnumerate is a directory listing; only these accesses
	// carry an enumeration pattern.
	RequestEnumerate RequestedAccess = 8
	// RequestEnumerationProbe is a probe performed on a path found
	// during enumeration.
	RequestEnumerationProbe RequestedAccess = 16

	RequestReadWrite = RequestRead | RequestWrite
	RequestAll       = RequestRead | RequestWrite | RequestProbe | RequestEnumerate | RequestEnumerationProbe
)

// ValidRequestedAccess reports whether v decodes to a known access
// combination.
func ValidRequestedAccess(v uint32) bool {
	return v <= uint32(RequestAll)
}

// PathID is an opaque key into a caller-owned path table. Zero is the
// invalid id.
type PathID uint32

// FileAccess is one observed file-system operation attempt by a process
// in the sandboxed tree, with the agent's policy outcome attached.
//
// A FileAccess is immutable once constructed and comparable; equality
// over the full field tuple is what the classification sets dedupe on.
// Path is the resolved path only when it differs from the manifest
// (scope) path identified by ManifestPath; otherwise it is empty so the
// same text is not stored twice.
type FileAccess struct {
	Operation FileOperation
	// Process is the accessing process. It may point at a synthesized
	// placeholder when the true record was never observed (report
	// reordering); identity is then best-effort.
	Process            *Process
	RequestedAccess    RequestedAccess
	Status             FileAccessStatus
	ExplicitlyReported bool
	Error              uint32
	// USN is the change-journal sequence number at the time of the
	// access, when the platform provides one.
	USN                 uint64
	DesiredAccess       uint32
	ShareMode           uint32
	CreationDisposition uint32
	FlagsAndAttributes  uint32
	ManifestPath        PathID
	Path                string
	// EnumeratePattern is the wildcard filter of a directory
	// enumeration; empty for every other access kind.
	EnumeratePattern string
}

// ResolvedPath returns the literal path of the access, expanding the
// manifest path through expand when no distinct path was stored.
func (a FileAccess) ResolvedPath(expand func(PathID) (string, bool)) string {
	if a.Path != "" {
		return a.Path
	}
	if expand != nil {
		if p, ok := expand(a.ManifestPath); ok {
			return p
		}
	}
	return ""
}

// Describe returns a short human-readable rendering for logs and
// summaries.
func (a FileAccess) Describe() string {
	path := a.Path
	if path == "" {
		path = fmt.Sprintf("<manifest:%d>", a.ManifestPath)
	}
	return fmt.Sprintf("%s %s (%s)", a.Operation, path, a.Status)
}
