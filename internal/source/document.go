package source

// Document is an immutable, ordered key/value view of a document literal
// (a filter, update document, or pipeline stage). It replaces ad hoc mutable
// containers with typed accessors; once built it is never modified.
type Document struct {
	keys []string
	vals map[string]Value
}

// ValueKind classifies a document value.
type ValueKind string

const (
	ValueString   ValueKind = "string"
	ValueNumber   ValueKind = "number"
	ValueBool     ValueKind = "bool"
	ValueDocument ValueKind = "document"
	ValueList     ValueKind = "list"
	ValueIdent    ValueKind = "ident" // a variable whose value is unknown statically
	ValueOther    ValueKind = "other"
)

// Value is one typed document value.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Doc  *Document
	List []Value
}

// NewDocument builds a Document from ordered key/value pairs. Duplicate keys
// keep the first value, matching driver semantics for bson.D.
func NewDocument(pairs ...DocPair) *Document {
	d := &Document{vals: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		if _, dup := d.vals[p.Key]; dup {
			continue
		}
		d.keys = append(d.keys, p.Key)
		d.vals[p.Key] = p.Value
	}
	return d
}

// DocPair is one entry of a document literal, in declaration order.
type DocPair struct {
	Key   string
	Value Value
}

// Keys returns the keys in declaration order. The returned slice is a copy.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of entries.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the value for key and whether it exists.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.vals[key]
	return v, ok
}

// GetString returns the string value for key, or "" when absent or not a string.
func (d *Document) GetString(key string) string {
	v, ok := d.Get(key)
	if !ok || v.Kind != ValueString {
		return ""
	}
	return v.Str
}

// GetDocument returns the nested document for key, or nil.
func (d *Document) GetDocument(key string) *Document {
	v, ok := d.Get(key)
	if !ok || v.Kind != ValueDocument {
		return nil
	}
	return v.Doc
}

// FirstKey returns the first key in declaration order, or "".
func (d *Document) FirstKey() string {
	if d == nil || len(d.keys) == 0 {
		return ""
	}
	return d.keys[0]
}
