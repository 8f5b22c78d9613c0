// Package analyzer extracts declared type shapes from parsed source files.
// A declaration qualifies as a document-store type when it carries a
// recognized serialization attribute, derives from a document-store type, or
// declares a field whose type is itself document-store related.
package analyzer

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/source"
)

// serializationAttrs are the attribute names that mark a document-store type.
var serializationAttrs = []string{"bson"}

// driverTypePrefixes mark field types that are inherently document-store
// related regardless of any attribute.
var driverTypePrefixes = []string{"primitive.", "bson.", "mongo."}

// Analyzer walks parsed files and produces CodeType records.
type Analyzer struct {
	log *zap.Logger
}

// New creates a type analyzer. The logger is required; pass zap.NewNop() to
// silence it.
func New(log *zap.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// Analyze extracts all document-store types from the given files.
//
// Qualification is computed to a fixpoint across the file set first, so a
// type that qualifies only through a base type or field type declared in
// another file is still recognized. Extraction failures on one declaration
// are logged and skip only that declaration, never the file.
func (a *Analyzer) Analyze(files []*source.File, repository, commitSHA string) []knowledge.CodeType {
	qualified := qualifyingTypes(files)

	var out []knowledge.CodeType
	for _, f := range files {
		for i := range f.Decls {
			decl := &f.Decls[i]
			if !qualified[decl.Name] {
				continue
			}
			ct, err := a.extractDecl(f, decl, repository, commitSHA)
			if err != nil {
				a.log.Warn("skipping declaration",
					zap.String("type", decl.Name),
					zap.String("file", f.Path),
					zap.Error(err))
				continue
			}
			out = append(out, ct)
		}
	}
	return out
}

// qualifyingTypes computes the set of document-store type names across all
// files, iterating until no new type qualifies: a type pulled in through a
// base type or member type is itself document-store related.
func qualifyingTypes(files []*source.File) map[string]bool {
	qualified := make(map[string]bool)

	// Seed: direct evidence (serialization attributes, driver types).
	for _, f := range files {
		for i := range f.Decls {
			d := &f.Decls[i]
			if hasSerializationAttr(d) || hasDriverTypedMember(d) {
				qualified[d.Name] = true
			}
		}
	}

	// Fixpoint: derive through base types and member types.
	for changed := true; changed; {
		changed = false
		for _, f := range files {
			for i := range f.Decls {
				d := &f.Decls[i]
				if qualified[d.Name] {
					continue
				}
				if derivesFromQualified(d, qualified) || hasQualifiedMember(d, qualified) {
					qualified[d.Name] = true
					changed = true
				}
			}
		}
	}
	return qualified
}

func hasSerializationAttr(d *source.Declaration) bool {
	for _, attr := range serializationAttrs {
		if d.HasAttribute(attr) {
			return true
		}
	}
	return false
}

func hasDriverTypedMember(d *source.Declaration) bool {
	for _, m := range d.Members {
		for _, prefix := range driverTypePrefixes {
			if strings.Contains(m.TypeName, prefix) {
				return true
			}
		}
	}
	return false
}

func derivesFromQualified(d *source.Declaration, qualified map[string]bool) bool {
	for _, base := range d.BaseTypes {
		if qualified[base] {
			return true
		}
	}
	return false
}

func hasQualifiedMember(d *source.Declaration, qualified map[string]bool) bool {
	for _, m := range d.Members {
		if qualified[baseTypeName(m.TypeName)] {
			return true
		}
	}
	return false
}

// extractDecl converts one qualifying declaration into a CodeType. A panic
// during extraction is recovered and reported as that declaration's error.
func (a *Analyzer) extractDecl(f *source.File, d *source.Declaration, repository, commitSHA string) (ct knowledge.CodeType, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &extractionError{decl: d.Name, cause: r}
		}
	}()

	ct = knowledge.CodeType{
		ID:            knowledge.TypeID(d.FullName),
		Name:          d.Name,
		FullName:      d.FullName,
		Namespace:     d.Namespace,
		Documentation: d.Documentation,
		BaseTypes:     d.BaseTypes,
		Provenance: knowledge.ProvenanceRecord{
			Repository: repository,
			FilePath:   f.Path,
			SymbolName: d.Name,
			StartLine:  d.StartLine,
			EndLine:    d.EndLine,
			CommitSHA:  commitSHA,
			Timestamp:  time.Now().UTC(),
		},
	}

	for _, m := range d.Members {
		field := knowledge.Field{
			Name:          m.Name,
			DeclaredType:  m.TypeName,
			Nullable:      m.Nullable,
			Documentation: m.Documentation,
			Line:          m.Line,
			IsEmbedded:    m.IsEmbedded,
		}

		optional := m.Nullable
		for _, attr := range m.Attributes {
			field.SerializationTags = append(field.SerializationTags, knowledge.Tag{
				Name:  attr.Name,
				Value: attr.Value,
			})
			if attr.HasOption("omitempty") {
				optional = true
			}
		}
		field.Required = !optional

		if values, ok := f.EnumTypes[m.TypeName]; ok {
			field.EnumValues = values
		}

		ct.Fields = append(ct.Fields, field)

		if isDiscriminatorMember(m) {
			ct.Discriminators = append(ct.Discriminators, f.EnumTypes[m.TypeName]...)
		}
	}

	return ct, nil
}

// isDiscriminatorMember recognizes the conventional polymorphism marker: a
// member serialized as "_t" or "type"/"kind".
func isDiscriminatorMember(m source.Member) bool {
	for _, attr := range m.Attributes {
		if attr.Name != "bson" {
			continue
		}
		switch attr.Value {
		case "_t", "type", "kind":
			return true
		}
	}
	return false
}

// baseTypeName strips pointer and collection decoration from a type name.
func baseTypeName(typeName string) string {
	s := strings.TrimLeft(typeName, "*[]")
	s = strings.TrimPrefix(s, "map[string]")
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return s
}

// extractionError wraps a recovered panic from a single declaration.
type extractionError struct {
	decl  string
	cause any
}

func (e *extractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.decl, e.cause)
}
