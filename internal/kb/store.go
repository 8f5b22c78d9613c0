// Package kb persists the knowledge base and reconciles scan results into
// it. The Synchronizer is the sole writer of persisted state; every other
// component returns pure in-memory results keyed by provenance.
package kb

import (
	"context"
	"fmt"
	"time"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// ScanType selects how much of a repository a run processes.
type ScanType string

const (
	ScanFull        ScanType = "full"
	ScanIncremental ScanType = "incremental"
	ScanIntegrity   ScanType = "integrity"
)

// ParseScanType validates a scan type argument. An unrecognized value is a
// non-recoverable configuration error.
func ParseScanType(s string) (ScanType, error) {
	switch ScanType(s) {
	case ScanFull, ScanIncremental, ScanIntegrity:
		return ScanType(s), nil
	}
	return "", fmt.Errorf("invalid scan type %q (expected full, incremental, or integrity)", s)
}

// RunStatus is the lifecycle state of a synchronization run.
type RunStatus string

const (
	StatusStarted        RunStatus = "started"
	StatusScanning       RunStatus = "scanning"
	StatusReconciling    RunStatus = "reconciling"
	StatusCompleted      RunStatus = "completed"
	StatusPartialFailure RunStatus = "partial"
	StatusFailed         RunStatus = "failed"
)

// RepositoryStatus is the outcome for one repository within a run.
type RepositoryStatus string

const (
	RepoSuccess RepositoryStatus = "success"
	RepoFailed  RepositoryStatus = "failed"
	RepoSkipped RepositoryStatus = "skipped"
)

// RepositoryResult summarizes one repository's contribution to a run.
type RepositoryResult struct {
	Repository    string           `json:"repository" bson:"repository"`
	Status        RepositoryStatus `json:"status" bson:"status"`
	Error         string           `json:"error,omitempty" bson:"error,omitempty"`
	CommitSHA     string           `json:"commit_sha,omitempty" bson:"commit_sha,omitempty"`
	Types         int              `json:"types" bson:"types"`
	Collections   int              `json:"collections" bson:"collections"`
	Queries       int              `json:"queries" bson:"queries"`
	Relationships int              `json:"relationships" bson:"relationships"`
	Schemas       int              `json:"schemas" bson:"schemas"`
	FilesScanned  int              `json:"files_scanned" bson:"files_scanned"`
}

// ScanSummary is the user-visible record of one synchronization run.
type ScanSummary struct {
	ScanID       string             `json:"scan_id" bson:"_id"`
	ScanType     ScanType           `json:"scan_type" bson:"scan_type"`
	Status       RunStatus          `json:"status" bson:"status"`
	Repositories []RepositoryResult `json:"repositories" bson:"repositories"`
	Health       []HealthReport     `json:"health,omitempty" bson:"health,omitempty"`
	StartedAt    time.Time          `json:"started_at" bson:"started_at"`
	Duration     time.Duration      `json:"duration" bson:"duration"`
}

// TypeRevision is an immutable per-commit snapshot of a CodeType, kept so
// type diffs between commits stay answerable after the live record moves on.
type TypeRevision struct {
	ID        string             `json:"id" bson:"_id"` // fullName@commit
	FullName  string             `json:"full_name" bson:"full_name"`
	CommitSHA string             `json:"commit_sha" bson:"commit_sha"`
	Type      knowledge.CodeType `json:"type" bson:"type"`
}

// RevisionID builds the deterministic id of a type revision.
func RevisionID(fullName, commitSHA string) string {
	return fullName + "@" + commitSHA
}

// Store is the persistence boundary of the knowledge base. All writes are
// deterministic-id upserts so re-running the same scan is idempotent.
type Store interface {
	UpsertTypes(ctx context.Context, types []knowledge.CodeType) error
	UpsertMappings(ctx context.Context, mappings []knowledge.CollectionMapping) error
	UpsertOperations(ctx context.Context, ops []knowledge.QueryOperation) error
	UpsertRelationships(ctx context.Context, rels []knowledge.DataRelationship) error
	UpsertSchemas(ctx context.Context, schemas []knowledge.ObservedSchema) error
	UpsertEntries(ctx context.Context, entries []knowledge.KnowledgeBaseEntry) error

	// ReplaceGraph swaps the graph projection of one repository.
	ReplaceGraph(ctx context.Context, repository string, nodes []knowledge.GraphNode, edges []knowledge.GraphEdge) error

	// ActiveEntries returns the live entries of one repository, used to
	// detect entities whose source no longer exists.
	ActiveEntries(ctx context.Context, repository string) ([]knowledge.KnowledgeBaseEntry, error)

	// DeactivateEntries marks entries inactive; they are never hard-deleted.
	DeactivateEntries(ctx context.Context, ids []string) error

	// Types and Mappings feed the post-reconciliation integrity checks.
	Types(ctx context.Context, repository string) ([]knowledge.CodeType, error)
	Mappings(ctx context.Context, repository string) ([]knowledge.CollectionMapping, error)

	// SaveTypeRevisions records immutable per-commit type snapshots.
	SaveTypeRevisions(ctx context.Context, revs []TypeRevision) error

	// TypeAtCommit loads a type snapshot, or nil when none was recorded.
	TypeAtCommit(ctx context.Context, fullName, commitSHA string) (*knowledge.CodeType, error)

	// RecordScan appends one run summary to the scan history.
	RecordScan(ctx context.Context, summary ScanSummary) error
}
