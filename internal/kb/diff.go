package kb

import (
	"context"
	"fmt"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// DiffTypeBetween compares the snapshots of one type at two commits. Both
// commits must have been scanned; an unscanned commit is reported as such
// rather than treated as an empty type.
func DiffTypeBetween(ctx context.Context, store Store, fullName, fromSHA, toSHA string) (*knowledge.TypeDiff, error) {
	from, err := store.TypeAtCommit(ctx, fullName, fromSHA)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, fmt.Errorf("no snapshot of %s at commit %s (was it scanned?)", fullName, fromSHA)
	}
	to, err := store.TypeAtCommit(ctx, fullName, toSHA)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, fmt.Errorf("no snapshot of %s at commit %s (was it scanned?)", fullName, toSHA)
	}
	diff := knowledge.DiffTypes(*from, *to)
	return &diff, nil
}
