package engine

// Field flag property names accepted by NormalizeFieldProp.
const (
	PropUnique    = "unique"
	PropImmutable = "immutable"
	PropIndexed   = "indexed"
)

// NormalizeFieldProp coerces a requested boolean field flag to a value the
// physical engines can represent. Some flags cannot be set for specific
// field types (a nested object cannot be unique, an encrypted text cannot be
// indexed); for those the requested value is forced to false. Every other
// combination passes the requested value through, defaulting to false when
// the request omitted it.
//
// Callers must route every create and update of a field's flags through this
// function; writing raw client flags would persist combinations the target
// engine cannot express.
func NormalizeFieldProp(propName, fieldType string, requested *bool) bool {
	spec, known := FieldTypeFor(fieldType)

	switch propName {
	case PropUnique:
		if known && !spec.CanBeUnique {
			return false
		}
	case PropImmutable:
		if known && !spec.CanBeImmutable {
			return false
		}
	case PropIndexed:
		if known && !spec.CanBeIndexed {
			return false
		}
	}

	if requested == nil {
		return false
	}
	return *requested
}
