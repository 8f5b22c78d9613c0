package kb

import (
	"context"
	"sync"
	"time"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// MemoryStore is an in-process Store used by tests and dry runs. It applies
// the same upsert-by-id semantics as the Mongo-backed store.
type MemoryStore struct {
	mu sync.Mutex

	types         map[string]knowledge.CodeType
	mappings      map[string]knowledge.CollectionMapping
	operations    map[string]knowledge.QueryOperation
	relationships map[string]knowledge.DataRelationship
	schemas       map[string]knowledge.ObservedSchema
	entries       map[string]knowledge.KnowledgeBaseEntry
	nodes         map[string]knowledge.GraphNode
	edges         map[string]knowledge.GraphEdge
	revisions     map[string]TypeRevision
	scans         []ScanSummary
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:         map[string]knowledge.CodeType{},
		mappings:      map[string]knowledge.CollectionMapping{},
		operations:    map[string]knowledge.QueryOperation{},
		relationships: map[string]knowledge.DataRelationship{},
		schemas:       map[string]knowledge.ObservedSchema{},
		entries:       map[string]knowledge.KnowledgeBaseEntry{},
		nodes:         map[string]knowledge.GraphNode{},
		edges:         map[string]knowledge.GraphEdge{},
		revisions:     map[string]TypeRevision{},
	}
}

func (s *MemoryStore) UpsertTypes(_ context.Context, types []knowledge.CodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range types {
		s.types[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) UpsertMappings(_ context.Context, mappings []knowledge.CollectionMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mappings {
		s.mappings[m.ID] = m
	}
	return nil
}

func (s *MemoryStore) UpsertOperations(_ context.Context, ops []knowledge.QueryOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range ops {
		s.operations[o.ID] = o
	}
	return nil
}

func (s *MemoryStore) UpsertRelationships(_ context.Context, rels []knowledge.DataRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rels {
		s.relationships[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) UpsertSchemas(_ context.Context, schemas []knowledge.ObservedSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range schemas {
		s.schemas[o.ID] = o
	}
	return nil
}

func (s *MemoryStore) UpsertEntries(_ context.Context, entries []knowledge.KnowledgeBaseEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) ReplaceGraph(_ context.Context, repository string, nodes []knowledge.GraphNode, edges []knowledge.GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n.Provenance.Repository == repository {
			delete(s.nodes, id)
		}
	}
	for id, e := range s.edges {
		if e.Provenance.Repository == repository {
			delete(s.edges, id)
		}
	}
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	for _, e := range edges {
		s.edges[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) ActiveEntries(_ context.Context, repository string) ([]knowledge.KnowledgeBaseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []knowledge.KnowledgeBaseEntry
	for _, e := range s.entries {
		if e.IsActive && e.Provenance.Repository == repository {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeactivateEntries(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			e.IsActive = false
			e.LastUpdated = now
			s.entries[id] = e
		}
	}
	return nil
}

func (s *MemoryStore) Types(_ context.Context, repository string) ([]knowledge.CodeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []knowledge.CodeType
	for _, t := range s.types {
		if t.Provenance.Repository == repository {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) Mappings(_ context.Context, repository string) ([]knowledge.CollectionMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []knowledge.CollectionMapping
	for _, m := range s.mappings {
		if m.Provenance.Repository == repository {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveTypeRevisions(_ context.Context, revs []TypeRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range revs {
		s.revisions[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) TypeAtCommit(_ context.Context, fullName, commitSHA string) (*knowledge.CodeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev, ok := s.revisions[RevisionID(fullName, commitSHA)]; ok {
		t := rev.Type
		return &t, nil
	}
	return nil, nil
}

func (s *MemoryStore) RecordScan(_ context.Context, summary ScanSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, summary)
	return nil
}

// Entry returns one entry by id, for test assertions.
func (s *MemoryStore) Entry(id string) (knowledge.KnowledgeBaseEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Counts reports how many documents each logical collection holds.
func (s *MemoryStore) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		colTypes:         len(s.types),
		colMappings:      len(s.mappings),
		colOperations:    len(s.operations),
		colRelationships: len(s.relationships),
		colSchemas:       len(s.schemas),
		colEntries:       len(s.entries),
		colGraphNodes:    len(s.nodes),
		colGraphEdges:    len(s.edges),
		colTypeRevisions: len(s.revisions),
		colScanHistory:   len(s.scans),
	}
}
