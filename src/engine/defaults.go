package engine

import (
	"time"

	"modelforge/src/helpers"
	"modelforge/src/models"
)

// OrderStep is the gap between consecutive order values. The large fixed
// step lets a single field be reordered or inserted between two neighbours
// without renumbering its siblings.
const OrderStep = 10000

// DefaultFields synthesizes the system managed fields of a newly created
// model: the identifier field and, when timestamps are enabled, the created
// and updated timestamp fields. Sub-models receive no default fields; their
// identity and timestamps live on the owning top-level model.
func DefaultFields(engine Engine, ts models.Timestamps, createdBy, modelKind string) []models.Field {
	if modelKind != models.ModelKindModel {
		return nil
	}

	order := OrderStep
	now := time.Now()

	idName := "id"
	if engine == EngineMongoDB {
		idName = "_id"
	}

	fields := []models.Field{{
		FieldID:   helpers.GenerateUUID(),
		IID:       helpers.GenerateSlug("fld"),
		Name:      idName,
		Type:      "id",
		DBType:    PhysicalType(engine, "id"),
		Creator:   models.FieldCreatorSystem,
		Order:     order,
		Required:  true,
		Unique:    true,
		Immutable: true,
		Indexed:   true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	if !ts.Enabled {
		return fields
	}

	order += OrderStep
	fields = append(fields, models.Field{
		FieldID:   helpers.GenerateUUID(),
		IID:       helpers.GenerateSlug("fld"),
		Name:      ts.CreatedAt,
		Type:      "createdat",
		DBType:    PhysicalType(engine, "createdat"),
		Creator:   models.FieldCreatorSystem,
		Order:     order,
		Required:  true,
		Immutable: true,
		Indexed:   true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})

	order += OrderStep
	fields = append(fields, models.Field{
		FieldID:   helpers.GenerateUUID(),
		IID:       helpers.GenerateSlug("fld"),
		Name:      ts.UpdatedAt,
		Type:      "updatedat",
		DBType:    PhysicalType(engine, "updatedat"),
		Creator:   models.FieldCreatorSystem,
		Order:     order,
		Required:  true,
		Indexed:   true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})

	return fields
}

// NewFieldOrderNumber returns the order value for the next field appended to
// the model.
func NewFieldOrderNumber(m *models.Model) int {
	order := 0
	for i := range m.Fields {
		if m.Fields[i].Order > order {
			order = m.Fields[i].Order
		}
	}
	return order + OrderStep
}

// NewValidationRuleOrderNumber returns the order value for the next
// validation rule appended to the field.
func NewValidationRuleOrderNumber(f *models.Field) int {
	order := 0
	for i := range f.ValidationRules {
		if f.ValidationRules[i].Order > order {
			order = f.ValidationRules[i].Order
		}
	}
	return order + OrderStep
}
