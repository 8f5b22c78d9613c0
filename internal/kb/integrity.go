package kb

import (
	"context"
	"fmt"
)

// HealthStatus grades the knowledge base after an integrity pass.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// IntegrityViolation is one problem found during an integrity scan.
type IntegrityViolation struct {
	Kind        string `json:"kind" bson:"kind"` // "orphan_mapping" or "missing_provenance"
	EntityID    string `json:"entity_id" bson:"entity_id"`
	Description string `json:"description" bson:"description"`
}

// HealthReport is the outcome of an integrity scan over one repository's
// slice of the knowledge base.
type HealthReport struct {
	Repository string               `json:"repository" bson:"repository"`
	Status     HealthStatus         `json:"status" bson:"status"`
	Violations []IntegrityViolation `json:"violations,omitempty" bson:"violations,omitempty"`
}

// CheckIntegrity verifies referential consistency for one repository:
// every mapping must point at a known type, and every record must carry
// provenance. Orphan mappings degrade the knowledge base; missing provenance
// makes it unhealthy because the fact can no longer be traced to source.
func CheckIntegrity(ctx context.Context, store Store, repository string) (*HealthReport, error) {
	types, err := store.Types(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("integrity check for %s: %w", repository, err)
	}
	mappings, err := store.Mappings(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("integrity check for %s: %w", repository, err)
	}

	report := &HealthReport{Repository: repository, Status: HealthHealthy}

	known := make(map[string]bool, len(types))
	for _, t := range types {
		known[t.ID] = true
		if t.Provenance.IsZero() {
			report.Violations = append(report.Violations, IntegrityViolation{
				Kind:        "missing_provenance",
				EntityID:    t.ID,
				Description: fmt.Sprintf("type %s has no provenance record", t.FullName),
			})
		}
	}
	for _, m := range mappings {
		if m.Provenance.IsZero() {
			report.Violations = append(report.Violations, IntegrityViolation{
				Kind:        "missing_provenance",
				EntityID:    m.ID,
				Description: fmt.Sprintf("mapping %s -> %s has no provenance record", m.TypeName, m.CollectionName),
			})
		}
		if !known[m.TypeID] {
			report.Violations = append(report.Violations, IntegrityViolation{
				Kind:        "orphan_mapping",
				EntityID:    m.ID,
				Description: fmt.Sprintf("mapping %s -> %s references unknown type %s", m.TypeName, m.CollectionName, m.TypeID),
			})
		}
	}

	report.Status = gradeViolations(report.Violations)
	return report, nil
}

// gradeViolations grades a violation list: missing provenance is unhealthy
// since the fact is untraceable; orphan mappings alone only degrade.
func gradeViolations(violations []IntegrityViolation) HealthStatus {
	status := HealthHealthy
	for _, v := range violations {
		if v.Kind == "missing_provenance" {
			return HealthUnhealthy
		}
		status = HealthDegraded
	}
	return status
}
