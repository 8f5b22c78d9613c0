package knowledge

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Entity IDs are deterministic hashes of logical identity, so re-running the
// same scan upserts the same documents and synchronization stays idempotent.

func hashID(prefix string, parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return prefix + "::" + hex.EncodeToString(sum[:10])
}

// TypeID generates the deterministic ID for a type, keyed by its FQCN.
func TypeID(fullName string) string {
	return hashID("type", fullName)
}

// MappingID generates the deterministic ID for a collection mapping,
// keyed by the (type, collection) pair.
func MappingID(typeID, collection string) string {
	return hashID("mapping", typeID, collection)
}

// OperationID generates the deterministic ID for a query operation, keyed by
// its call-site location, verb, and collection.
func OperationID(filePath string, line int, kind OperationKind, collection string) string {
	return hashID("op", filePath, fmt.Sprintf("%d", line), string(kind), collection)
}

// RelationshipID generates the deterministic ID for a relationship, keyed by
// the full dedup tuple.
func RelationshipID(sourceTypeID, targetTypeID string, kind RelationshipKind, fieldPath string) string {
	return hashID("rel", sourceTypeID, targetTypeID, string(kind), fieldPath)
}

// SchemaID generates the deterministic ID for an observed schema.
func SchemaID(collection string) string {
	return hashID("schema", collection)
}

// EntryID generates the deterministic ID of the knowledge-base entry that
// shadows an entity.
func EntryID(entityID string) string {
	return "entry::" + entityID
}

// NodeID generates the deterministic ID for a graph node.
func NodeID(kind, name string) string {
	return hashID("node", kind, name)
}

// EdgeID generates the deterministic ID for a graph edge.
func EdgeID(source, target, kind string) string {
	return hashID("edge", source, target, kind)
}
