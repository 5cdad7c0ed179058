package models

import (
	"time"
)

// Model kinds. Sub-models are materialized as the shape of an embedded
// object or object-list field and always carry the iid of their parent.
const (
	ModelKindModel     = "model"
	ModelKindSubObject = "sub-model-object"
	ModelKindSubList   = "sub-model-list"
)

// Field creators. System fields are managed by the platform and cannot be
// renamed, retyped or deleted by a user.
const (
	FieldCreatorSystem = "system"
	FieldCreatorUser   = "user"
)

// Validation rule kinds.
const (
	RuleKindExpression = "exp"
	RuleKindSQL        = "sql"
)

// Timestamps is the timestamps configuration of a model. The field names are
// configurable so that a design can use its own naming convention.
type Timestamps struct {
	Enabled   bool   `bson:"enabled" json:"enabled"`
	CreatedAt string `bson:"createdAt" json:"createdAt"`
	UpdatedAt string `bson:"updatedAt" json:"updatedAt"`
}

// DefaultTimestamps returns the timestamps configuration a model falls back
// to when none is supplied.
func DefaultTimestamps() Timestamps {
	return Timestamps{Enabled: false, CreatedAt: "createdAt", UpdatedAt: "updatedAt"}
}

// Database is a named logical database inside one application version. The
// engine kind is chosen at creation and immutable thereafter.
type Database struct {
	// DatabaseID is the store primary key.
	DatabaseID string `bson:"_id" json:"id"`

	// VersionID scopes the database to one application version.
	VersionID string `bson:"versionId" json:"versionId"`

	// IID is the version-scoped internal identifier used for all
	// cross-entity references.
	IID string `bson:"iid" json:"iid"`

	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// Engine is the physical database technology this logical database is
	// projected onto (see engine.Engine for the enumeration).
	Engine string `bson:"engine" json:"engine"`

	CreatedBy string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// Models is populated transiently by the type projector. It is never
	// persisted with the database document.
	Models []Model `bson:"-" json:"-"`
}

// Model is a table/collection definition. Models form a forest per database:
// top-level models have no parent, sub-models point to their owner through
// ParentIID.
type Model struct {
	// ModelID is the store primary key.
	ModelID string `bson:"_id" json:"id"`

	VersionID  string `bson:"versionId" json:"versionId"`
	DatabaseID string `bson:"dbId" json:"dbId"`

	// IID is the version-scoped internal identifier. Reference and
	// object/object-list fields point at models through this value.
	IID string `bson:"iid" json:"iid"`

	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// Kind is one of ModelKindModel, ModelKindSubObject, ModelKindSubList.
	Kind string `bson:"kind" json:"kind"`

	// ParentIID is set iff Kind != ModelKindModel and holds the iid of the
	// owning model.
	ParentIID string `bson:"parentiid,omitempty" json:"parentiid,omitempty"`

	Timestamps Timestamps `bson:"timestamps" json:"timestamps"`

	Fields []Field `bson:"fields" json:"fields"`

	CreatedBy string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsTopLevel reports whether the model is a top-level model.
func (m *Model) IsTopLevel() bool {
	return m.Kind == ModelKindModel
}

// FieldByID returns the field with the given primary key, or nil.
func (m *Model) FieldByID(fieldID string) *Field {
	for i := range m.Fields {
		if m.Fields[i].FieldID == fieldID {
			return &m.Fields[i]
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (m *Model) FieldByName(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	clone := *m
	clone.Fields = make([]Field, len(m.Fields))
	for i := range m.Fields {
		clone.Fields[i] = *m.Fields[i].Clone()
	}
	return &clone
}

// Field type specific property payloads. Exactly one of these is set on a
// field, matching its type.

type TextProps struct {
	Searchable bool   `bson:"searchable" json:"searchable"`
	MaxLength  int    `bson:"maxLength,omitempty" json:"maxLength,omitempty"`
	Language   string `bson:"language,omitempty" json:"language,omitempty"`
}

type RichTextProps struct {
	Searchable bool   `bson:"searchable" json:"searchable"`
	Language   string `bson:"language,omitempty" json:"language,omitempty"`
}

type EncryptedTextProps struct {
	MaxLength int `bson:"maxLength,omitempty" json:"maxLength,omitempty"`
}

type DecimalProps struct {
	DecimalDigits int `bson:"decimalDigits" json:"decimalDigits"`
}

type EnumProps struct {
	SelectList []string `bson:"selectList" json:"selectList"`
}

// ObjectProps points an object field at its paired sub-model.
type ObjectProps struct {
	IID string `bson:"iid" json:"iid"`
}

// ObjectListProps points an object-list field at its paired sub-model.
type ObjectListProps struct {
	IID string `bson:"iid" json:"iid"`
}

// ReferenceProps points a reference field at another model in the same
// version. There is no store-level enforcement of this link; referential
// cleanup is handled by the cascade planner.
type ReferenceProps struct {
	IID string `bson:"iid" json:"iid"`
}

type BasicValuesListProps struct {
	// Kind is the element type of the list (one of the basic value types).
	Kind string `bson:"kind" json:"kind"`
}

// ValidationRule is a user supplied rule attached to a field. Rules are
// display-ordered with the same sparse order scheme as fields.
type ValidationRule struct {
	RuleID       string    `bson:"_id" json:"id"`
	IID          string    `bson:"iid" json:"iid"`
	Kind         string    `bson:"kind" json:"kind"`
	Rule         string    `bson:"rule" json:"rule"`
	ErrorMessage string    `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	Order        int       `bson:"order" json:"order"`
	CreatedBy    string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Field is a single member of a model.
type Field struct {
	// FieldID is the store primary key of the field subdocument.
	FieldID string `bson:"_id" json:"id"`

	// IID is the version-scoped internal identifier of the field.
	IID string `bson:"iid" json:"iid"`

	Name string `bson:"name" json:"name"`

	// Type is a field type name from the catalog.
	Type string `bson:"type" json:"type"`

	// DBType is the engine specific physical type annotation resolved from
	// the catalog at creation time.
	DBType string `bson:"dbType" json:"dbType"`

	// Creator is FieldCreatorSystem or FieldCreatorUser.
	Creator string `bson:"creator" json:"creator"`

	// Order is a sparse, monotonically assigned display order (step 10000).
	Order int `bson:"order" json:"order"`

	Description string `bson:"description,omitempty" json:"description,omitempty"`

	Required  bool `bson:"required" json:"required"`
	Unique    bool `bson:"unique" json:"unique"`
	Immutable bool `bson:"immutable" json:"immutable"`
	Indexed   bool `bson:"indexed" json:"indexed"`

	DefaultValue string `bson:"defaultValue,omitempty" json:"defaultValue,omitempty"`

	Text            *TextProps            `bson:"text,omitempty" json:"text,omitempty"`
	RichText        *RichTextProps        `bson:"richText,omitempty" json:"richText,omitempty"`
	EncryptedText   *EncryptedTextProps   `bson:"encryptedText,omitempty" json:"encryptedText,omitempty"`
	Decimal         *DecimalProps         `bson:"decimal,omitempty" json:"decimal,omitempty"`
	Enum            *EnumProps            `bson:"enum,omitempty" json:"enum,omitempty"`
	Object          *ObjectProps          `bson:"object,omitempty" json:"object,omitempty"`
	ObjectList      *ObjectListProps      `bson:"objectList,omitempty" json:"objectList,omitempty"`
	Reference       *ReferenceProps       `bson:"reference,omitempty" json:"reference,omitempty"`
	BasicValuesList *BasicValuesListProps `bson:"basicValuesList,omitempty" json:"basicValuesList,omitempty"`

	ValidationRules []ValidationRule `bson:"validationRules,omitempty" json:"validationRules,omitempty"`

	CreatedBy string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsNested reports whether the field embeds a sub-model.
func (f *Field) IsNested() bool {
	return f.Type == "object" || f.Type == "object-list"
}

// PairedModelIID returns the iid of the sub-model an object or object-list
// field points at, or "" for every other field type.
func (f *Field) PairedModelIID() string {
	switch {
	case f.Type == "object" && f.Object != nil:
		return f.Object.IID
	case f.Type == "object-list" && f.ObjectList != nil:
		return f.ObjectList.IID
	}
	return ""
}

// ReferenceIID returns the iid of the model a reference field points at, or
// "" for every other field type.
func (f *Field) ReferenceIID() string {
	if f.Type == "reference" && f.Reference != nil {
		return f.Reference.IID
	}
	return ""
}

// RuleByID returns the validation rule with the given id, or nil.
func (f *Field) RuleByID(ruleID string) *ValidationRule {
	for i := range f.ValidationRules {
		if f.ValidationRules[i].RuleID == ruleID {
			return &f.ValidationRules[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	clone := *f
	if f.Text != nil {
		v := *f.Text
		clone.Text = &v
	}
	if f.RichText != nil {
		v := *f.RichText
		clone.RichText = &v
	}
	if f.EncryptedText != nil {
		v := *f.EncryptedText
		clone.EncryptedText = &v
	}
	if f.Decimal != nil {
		v := *f.Decimal
		clone.Decimal = &v
	}
	if f.Enum != nil {
		v := *f.Enum
		clone.Enum = &v
		clone.Enum.SelectList = append([]string(nil), f.Enum.SelectList...)
	}
	if f.Object != nil {
		v := *f.Object
		clone.Object = &v
	}
	if f.ObjectList != nil {
		v := *f.ObjectList
		clone.ObjectList = &v
	}
	if f.Reference != nil {
		v := *f.Reference
		clone.Reference = &v
	}
	if f.BasicValuesList != nil {
		v := *f.BasicValuesList
		clone.BasicValuesList = &v
	}
	clone.ValidationRules = append([]ValidationRule(nil), f.ValidationRules...)
	return &clone
}
