package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doclens-dev/doclens/internal/analyzer"
	"github.com/doclens-dev/doclens/internal/gitinfo"
	"github.com/doclens-dev/doclens/internal/inference"
	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/operations"
	"github.com/doclens-dev/doclens/internal/resolver"
	"github.com/doclens-dev/doclens/internal/source"
	"github.com/doclens-dev/doclens/internal/state"
)

// Concurrency defaults: repositories are scanned in one bounded pool, and
// incremental file parsing in a second, per-repository pool.
const (
	DefaultWorkers     = 4
	DefaultFileWorkers = 8
)

// StateStore is the slice of the local scan-state store the synchronizer
// needs: the incremental baseline and run bookkeeping.
type StateStore interface {
	LastCommitSHA(ctx context.Context, repository string) (string, error)
	RecordRun(ctx context.Context, run state.Run) error
}

// SampleFunc fetches observed schemas for a set of collections. Wired to
// sampler.Sampler.Sample when sampling is enabled; nil disables sampling.
type SampleFunc func(ctx context.Context, collections []string, repository, commitSHA string) ([]knowledge.ObservedSchema, error)

// Request describes one synchronization run.
type Request struct {
	Repositories []string // local repository paths
	Type         ScanType
	SinceSHA     string // incremental baseline override; defaults to the state store's record
}

// Options tunes a Synchronizer.
type Options struct {
	Workers     int        // repository pool size
	FileWorkers int        // per-repository incremental parse pool size
	State       StateStore // optional; nil disables the local baseline
	Sample      SampleFunc // optional; nil disables runtime sampling
}

// Synchronizer runs the extraction passes over repositories and reconciles
// their results into the knowledge base. It is the only component that
// writes persisted state; one repository failing does not abort the others.
type Synchronizer struct {
	store       Store
	frontend    source.FrontEnd
	analyzer    *analyzer.Analyzer
	resolver    *resolver.Resolver
	extractor   *operations.Extractor
	inferencer  *inference.Inferencer
	stateStore  StateStore
	sample      SampleFunc
	log         *zap.Logger
	workers     int
	fileWorkers int

	// Overridable for tests that have no git history to read.
	headSHA      func(dir string) (string, error)
	changedFiles func(dir, sinceSHA string) (gitinfo.Changes, error)
}

// New builds a Synchronizer around a store and a language front end.
func New(store Store, frontend source.FrontEnd, log *zap.Logger, opts Options) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	fileWorkers := opts.FileWorkers
	if fileWorkers <= 0 {
		fileWorkers = DefaultFileWorkers
	}
	return &Synchronizer{
		store:        store,
		frontend:     frontend,
		analyzer:     analyzer.New(log),
		resolver:     resolver.New(log),
		extractor:    operations.New(log),
		inferencer:   inference.New(log),
		stateStore:   opts.State,
		sample:       opts.Sample,
		log:          log,
		workers:      workers,
		fileWorkers:  fileWorkers,
		headSHA:      gitinfo.HeadSHA,
		changedFiles: gitinfo.ChangedFiles,
	}
}

// Run executes one scan over every requested repository. Individual repository
// failures are isolated into the summary; the run itself errors only when the
// request is invalid, the context is cancelled, or every repository failed.
// In the last case the summary is still recorded and returned with the error.
func (s *Synchronizer) Run(ctx context.Context, req Request) (*ScanSummary, error) {
	if _, err := ParseScanType(string(req.Type)); err != nil {
		return nil, err
	}
	if len(req.Repositories) == 0 {
		return nil, fmt.Errorf("no repositories to scan")
	}

	started := time.Now()
	summary := &ScanSummary{
		ScanID:    uuid.NewString(),
		ScanType:  req.Type,
		Status:    StatusStarted,
		StartedAt: started.UTC(),
	}
	s.log.Info("scan started",
		zap.String("scan_id", summary.ScanID),
		zap.String("type", string(req.Type)),
		zap.Int("repositories", len(req.Repositories)))

	summary.Status = StatusScanning
	results := make([]RepositoryResult, len(req.Repositories))
	healths := make([]*HealthReport, len(req.Repositories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, dir := range req.Repositories {
		i, dir := i, dir
		g.Go(func() error {
			res, health := s.scanRepository(gctx, dir, req)
			results[i] = res
			healths[i] = health
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s interrupted: %w", summary.ScanID, err)
	}

	summary.Status = StatusReconciling
	summary.Repositories = results
	for _, h := range healths {
		if h != nil {
			summary.Health = append(summary.Health, *h)
		}
	}

	var failures int
	for _, res := range results {
		if res.Status == RepoFailed {
			failures++
		}
	}
	switch {
	case failures == 0:
		summary.Status = StatusCompleted
	case failures == len(results):
		summary.Status = StatusFailed
	default:
		summary.Status = StatusPartialFailure
	}
	summary.Duration = time.Since(started)

	if err := s.store.RecordScan(ctx, *summary); err != nil {
		return nil, fmt.Errorf("recording scan: %w", err)
	}
	s.recordRuns(ctx, summary)

	s.log.Info("scan finished",
		zap.String("scan_id", summary.ScanID),
		zap.String("status", string(summary.Status)),
		zap.Duration("duration", summary.Duration))
	if summary.Status == StatusFailed {
		return summary, fmt.Errorf("scan %s: all %d repositories failed", summary.ScanID, failures)
	}
	return summary, nil
}

func (s *Synchronizer) recordRuns(ctx context.Context, summary *ScanSummary) {
	if s.stateStore == nil {
		return
	}
	for _, res := range summary.Repositories {
		run := state.Run{
			ScanID:     summary.ScanID,
			Repository: res.Repository,
			CommitSHA:  res.CommitSHA,
			ScanType:   string(summary.ScanType),
			Status:     string(res.Status),
			StartedAt:  summary.StartedAt,
			Duration:   summary.Duration,
		}
		if err := s.stateStore.RecordRun(ctx, run); err != nil {
			s.log.Warn("recording local scan state failed",
				zap.String("repository", res.Repository), zap.Error(err))
		}
	}
}

// scanRepository processes one repository and never panics the run: failures
// come back as a failed result.
func (s *Synchronizer) scanRepository(ctx context.Context, dir string, req Request) (RepositoryResult, *HealthReport) {
	repoName := repositoryName(dir)
	res := RepositoryResult{Repository: repoName, Status: RepoSuccess}

	commitSHA, err := s.headSHA(dir)
	if err != nil {
		return failed(res, fmt.Errorf("reading repository head: %w", err)), nil
	}
	res.CommitSHA = commitSHA

	if req.Type == ScanIntegrity {
		health, err := CheckIntegrity(ctx, s.store, repoName)
		if err != nil {
			return failed(res, err), nil
		}
		return res, health
	}

	var files []*source.File
	var deleted []string
	scanType := req.Type

	if scanType == ScanIncremental {
		since := req.SinceSHA
		if since == "" && s.stateStore != nil {
			since, err = s.stateStore.LastCommitSHA(ctx, repoName)
			if err != nil {
				return failed(res, err), nil
			}
		}
		if since == "" || commitSHA == "" {
			s.log.Info("no incremental baseline, falling back to full scan",
				zap.String("repository", repoName))
			scanType = ScanFull
		} else {
			files, deleted, err = s.loadChanged(ctx, dir, since)
			if err != nil {
				return failed(res, err), nil
			}
		}
	}
	if scanType == ScanFull {
		files, err = s.frontend.LoadRepository(ctx, dir)
		if err != nil {
			return failed(res, fmt.Errorf("loading repository: %w", err)), nil
		}
	}
	res.FilesScanned = len(files)

	if len(files) == 0 && len(deleted) == 0 {
		s.log.Info("no source files to scan, skipping repository",
			zap.String("repository", repoName))
		res.Status = RepoSkipped
		return res, nil
	}

	result := s.extract(files, repoName, commitSHA)
	if s.sample != nil {
		schemas, err := s.sample(ctx, primaryCollections(result.Mappings), repoName, commitSHA)
		if err != nil {
			// Sampling is best-effort: a down database must not fail the
			// static half of the scan.
			s.log.Warn("runtime sampling failed",
				zap.String("repository", repoName), zap.Error(err))
		} else {
			result.Schemas = schemas
		}
	}

	if err := s.persist(ctx, result, scanType == ScanFull, deleted); err != nil {
		return failed(res, err), nil
	}

	res.Types = len(result.Types)
	res.Collections = len(result.Mappings)
	res.Queries = len(result.Operations)
	res.Relationships = len(result.Relationships)
	res.Schemas = len(result.Schemas)

	// Integrity checks run after every reconciliation, not just in
	// integrity-only mode. A checker failure does not undo the scan.
	health, err := CheckIntegrity(ctx, s.store, repoName)
	if err != nil {
		s.log.Warn("integrity check failed",
			zap.String("repository", repoName), zap.Error(err))
		return res, nil
	}
	return res, health
}

// extract runs the static passes in order: types feed collection resolution,
// and both feed relationship inference.
func (s *Synchronizer) extract(files []*source.File, repository, commitSHA string) *knowledge.ExtractionResult {
	types := s.analyzer.Analyze(files, repository, commitSHA)
	mappings := s.resolver.Resolve(files, types, repository, commitSHA)
	ops := s.extractor.Extract(files, repository, commitSHA)
	rels := s.inferencer.Infer(types, mappings, ops, repository, commitSHA)
	return &knowledge.ExtractionResult{
		Repository:    repository,
		CommitSHA:     commitSHA,
		Types:         types,
		Mappings:      mappings,
		Operations:    ops,
		Relationships: rels,
	}
}

// loadChanged parses the files touched since a baseline commit, in a bounded
// pool. Deleted paths come back separately so their entries can be retired.
func (s *Synchronizer) loadChanged(ctx context.Context, dir, since string) ([]*source.File, []string, error) {
	changes, err := s.changedFiles(dir, since)
	if err != nil {
		return nil, nil, fmt.Errorf("listing changed files: %w", err)
	}

	var mu sync.Mutex
	var files []*source.File
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fileWorkers)

	for _, rel := range changes.Modified {
		rel := rel
		if !strings.HasSuffix(rel, ".go") || strings.HasSuffix(rel, "_test.go") {
			continue
		}
		path := filepath.Join(dir, rel)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			f, err := s.frontend.ParseFile(rel, src)
			if err != nil {
				// A single unparsable file is skipped, not fatal.
				s.log.Warn("skipping unparsable file", zap.String("path", rel), zap.Error(err))
				return nil
			}
			mu.Lock()
			files = append(files, f)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return files, changes.Deleted, nil
}

// persist writes one repository's extraction result. All writes are upserts
// keyed by deterministic ids, so running the same scan twice is a no-op.
func (s *Synchronizer) persist(ctx context.Context, result *knowledge.ExtractionResult, full bool, deletedFiles []string) error {
	now := time.Now().UTC()
	entries := BuildEntries(result, now)

	if err := s.store.UpsertTypes(ctx, result.Types); err != nil {
		return err
	}
	if err := s.store.SaveTypeRevisions(ctx, typeRevisions(result)); err != nil {
		return err
	}
	if err := s.store.UpsertMappings(ctx, result.Mappings); err != nil {
		return err
	}
	if err := s.store.UpsertOperations(ctx, result.Operations); err != nil {
		return err
	}
	if err := s.store.UpsertRelationships(ctx, result.Relationships); err != nil {
		return err
	}
	if err := s.store.UpsertSchemas(ctx, result.Schemas); err != nil {
		return err
	}

	stale, err := s.staleEntryIDs(ctx, result.Repository, entries, full, deletedFiles)
	if err != nil {
		return err
	}
	if err := s.store.UpsertEntries(ctx, entries); err != nil {
		return err
	}
	if err := s.store.DeactivateEntries(ctx, stale); err != nil {
		return err
	}

	// The graph projection is rebuilt wholesale, which only a full scan can
	// do without dropping vertices for unchanged files.
	if full {
		nodes, edges := BuildGraph(result)
		if err := s.store.ReplaceGraph(ctx, result.Repository, nodes, edges); err != nil {
			return err
		}
	}
	return nil
}

// staleEntryIDs finds active entries whose backing source is gone. A full
// scan retires everything absent from the fresh result set; an incremental
// scan only retires entries rooted in deleted files.
func (s *Synchronizer) staleEntryIDs(ctx context.Context, repository string, fresh []knowledge.KnowledgeBaseEntry, full bool, deletedFiles []string) ([]string, error) {
	active, err := s.store.ActiveEntries(ctx, repository)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	var stale []string
	if full {
		freshIDs := make(map[string]bool, len(fresh))
		for _, e := range fresh {
			freshIDs[e.ID] = true
		}
		for _, e := range active {
			if !freshIDs[e.ID] {
				stale = append(stale, e.ID)
			}
		}
		return stale, nil
	}

	deleted := make(map[string]bool, len(deletedFiles))
	for _, f := range deletedFiles {
		deleted[f] = true
	}
	for _, e := range active {
		if deleted[e.Provenance.FilePath] {
			stale = append(stale, e.ID)
		}
	}
	return stale, nil
}

func typeRevisions(result *knowledge.ExtractionResult) []TypeRevision {
	if result.CommitSHA == "" {
		return nil
	}
	revs := make([]TypeRevision, 0, len(result.Types))
	for _, t := range result.Types {
		revs = append(revs, TypeRevision{
			ID:        RevisionID(t.FullName, result.CommitSHA),
			FullName:  t.FullName,
			CommitSHA: result.CommitSHA,
			Type:      t,
		})
	}
	return revs
}

func primaryCollections(mappings []knowledge.CollectionMapping) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range mappings {
		if m.IsPrimary && !seen[m.CollectionName] {
			seen[m.CollectionName] = true
			out = append(out, m.CollectionName)
		}
	}
	return out
}

func repositoryName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

func failed(res RepositoryResult, err error) RepositoryResult {
	res.Status = RepoFailed
	res.Error = err.Error()
	return res
}
