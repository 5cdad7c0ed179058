package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeFieldProp(t *testing.T) {
	tests := []struct {
		name      string
		prop      string
		fieldType string
		requested *bool
		want      bool
	}{
		{"text can be unique", PropUnique, "text", boolPtr(true), true},
		{"text unique declined", PropUnique, "text", boolPtr(false), false},
		{"text unique omitted", PropUnique, "text", nil, false},
		{"object cannot be unique", PropUnique, "object", boolPtr(true), false},
		{"object-list cannot be unique", PropUnique, "object-list", boolPtr(true), false},
		{"json cannot be unique", PropUnique, "json", boolPtr(true), false},
		{"binary cannot be unique", PropUnique, "binary", boolPtr(true), false},
		{"geo-point cannot be unique", PropUnique, "geo-point", boolPtr(true), false},
		{"encrypted-text cannot be unique", PropUnique, "encrypted-text", boolPtr(true), false},
		{"rich-text cannot be unique", PropUnique, "rich-text", boolPtr(true), false},
		{"basic-values-list cannot be unique", PropUnique, "basic-values-list", boolPtr(true), false},

		{"object cannot be immutable", PropImmutable, "object", boolPtr(true), false},
		{"object-list cannot be immutable", PropImmutable, "object-list", boolPtr(true), false},
		{"text can be immutable", PropImmutable, "text", boolPtr(true), true},
		{"basic-values-list can be immutable", PropImmutable, "basic-values-list", boolPtr(true), true},

		{"object cannot be indexed", PropIndexed, "object", boolPtr(true), false},
		{"json cannot be indexed", PropIndexed, "json", boolPtr(true), false},
		{"binary cannot be indexed", PropIndexed, "binary", boolPtr(true), false},
		{"encrypted-text cannot be indexed", PropIndexed, "encrypted-text", boolPtr(true), false},
		{"rich-text can be indexed", PropIndexed, "rich-text", boolPtr(true), true},
		{"basic-values-list can be indexed", PropIndexed, "basic-values-list", boolPtr(true), true},

		{"unknown type passes through", PropUnique, "mystery", boolPtr(true), true},
		{"unknown type omitted", PropIndexed, "mystery", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFieldProp(tt.prop, tt.fieldType, tt.requested))
		})
	}
}

// Normalizing an already normalized value never changes it again, for any
// type and flag combination.
func TestNormalizeFieldPropIdempotent(t *testing.T) {
	props := []string{PropUnique, PropImmutable, PropIndexed}
	for _, fieldType := range FieldTypeNames() {
		for _, prop := range props {
			for _, requested := range []bool{true, false} {
				first := NormalizeFieldProp(prop, fieldType, boolPtr(requested))
				second := NormalizeFieldProp(prop, fieldType, boolPtr(first))
				assert.Equal(t, first, second, "%s/%s requested=%v", fieldType, prop, requested)
			}
		}
	}
}
