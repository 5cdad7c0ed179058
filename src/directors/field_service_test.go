package directors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelforge/src/engine"
	"modelforge/src/models"
)

func TestCreateTextField(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:     "email",
		Type:     "text",
		Required: boolPtr(true),
		Unique:   boolPtr(true),
		Indexed:  boolPtr(true),
		Text:     &models.TextProps{MaxLength: 255},
	})

	field := updated.FieldByName("email")
	require.NotNil(t, field)
	assert.Equal(t, "string", field.DBType)
	assert.Equal(t, models.FieldCreatorUser, field.Creator)
	assert.Equal(t, 2*engine.OrderStep, field.Order)
	assert.True(t, field.Required)
	assert.True(t, field.Unique)
	assert.True(t, field.Indexed)
}

func TestCreateFieldNormalizesFlags(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "tags",
		Type:             "object-list",
		Unique:           boolPtr(true),
		Immutable:        boolPtr(true),
		Indexed:          boolPtr(true),
		ObjectTimestamps: models.DefaultTimestamps(),
	})

	field := updated.FieldByName("tags")
	require.NotNil(t, field)
	assert.False(t, field.Unique)
	assert.False(t, field.Immutable)
	assert.False(t, field.Indexed)
}

func TestCreateFieldRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	_, err := env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "birthday",
		Type:      "date",
		CreatedBy: "env-1",
	})
	require.True(t, engine.IsValidationError(err))
	assert.Contains(t, err.Error(), "MongoDB")

	_, err = env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "whatever",
		Type:      "hologram",
		CreatedBy: "env-1",
	})
	assert.True(t, engine.IsValidationError(err))
}

func TestSearchableRejectedOnNonTextTypes(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	_, err := env.fields.CreateField(ctx, CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "secret",
		Type:      "encrypted-text",
		Text:      &models.TextProps{Searchable: true},
		CreatedBy: "env-1",
	})
	require.True(t, engine.IsValidationError(err))
	assert.Contains(t, err.Error(), "searchable")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{Name: "age", Type: "integer"})
	age := updated.FieldByName("age")
	require.NotNil(t, age)

	_, err = env.fields.UpdateField(ctx, testVersion, customer.ModelID, age.FieldID, UpdateFieldRequest{
		RichText:  &models.RichTextProps{Searchable: true},
		UpdatedBy: "env-1",
	})
	assert.True(t, engine.IsValidationError(err))
}

func TestCreateFieldRejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")
	env.createField(t, customer.ModelID, CreateFieldRequest{Name: "email", Type: "text"})

	_, err := env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "email",
		Type:      "text",
		CreatedBy: "env-1",
	})
	assert.True(t, engine.IsValidationError(err))
}

func TestCreateObjectFieldCreatesSubModel(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "profile",
		Type:             "object",
		ObjectTimestamps: models.DefaultTimestamps(),
	})

	field := updated.FieldByName("profile")
	require.NotNil(t, field)
	require.NotNil(t, field.Object)

	sub, err := env.models.GetModelByIID(ctx, testVersion, field.Object.IID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelKindSubObject, sub.Kind)
	assert.Equal(t, "profile", sub.Name)
	assert.Equal(t, customer.IID, sub.ParentIID)
	assert.Empty(t, sub.Fields)
}

func TestCreateObjectListFieldCreatesSubModel(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "addresses",
		Type:             "object-list",
		ObjectTimestamps: models.DefaultTimestamps(),
	})

	field := updated.FieldByName("addresses")
	require.NotNil(t, field)
	require.NotNil(t, field.ObjectList)

	sub, err := env.models.GetModelByIID(ctx, testVersion, field.ObjectList.IID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelKindSubList, sub.Kind)
}

func TestCreateReferenceFieldChecksTarget(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	_, err := env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID:    testVersion,
		ModelID:      customer.ModelID,
		Name:         "parentRecord",
		Type:         "reference",
		ReferenceIID: "mdl-nope",
		CreatedBy:    "env-1",
	})
	assert.True(t, engine.IsValidationError(err))

	_, err = env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "parentRecord",
		Type:      "reference",
		CreatedBy: "env-1",
	})
	assert.True(t, engine.IsValidationError(err))
}

func TestSearchableFieldAddsLanguageField(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name: "bio",
		Type: "text",
		Text: &models.TextProps{Searchable: true, Language: "french"},
	})

	lang := updated.FieldByName("language")
	require.NotNil(t, lang)
	assert.Equal(t, models.FieldCreatorSystem, lang.Creator)
	assert.Equal(t, "text", lang.Type)
	assert.Equal(t, "french", lang.DefaultValue)
	assert.True(t, lang.Required)
	assert.True(t, lang.Immutable)
	assert.True(t, lang.Indexed)
	require.NotNil(t, lang.Text)
	assert.Equal(t, 32, lang.Text.MaxLength)
}

func TestSearchableFieldNotOnRelationalEngines(t *testing.T) {
	env := newTestEnv(t, engine.EnginePostgreSQL)
	account := env.createModel(t, "account")

	updated := env.createField(t, account.ModelID, CreateFieldRequest{
		Name: "bio",
		Type: "text",
		Text: &models.TextProps{Searchable: true},
	})
	assert.Nil(t, updated.FieldByName("language"))
}

func TestSearchableFieldConflictsWithUserLanguageField(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")
	env.createField(t, customer.ModelID, CreateFieldRequest{Name: "language", Type: "text"})

	_, err := env.fields.CreateField(ctx, CreateFieldRequest{
		VersionID: testVersion,
		ModelID:   customer.ModelID,
		Name:      "bio",
		Type:      "text",
		Text:      &models.TextProps{Searchable: true},
		CreatedBy: "env-1",
	})
	require.True(t, engine.IsNotAllowed(err))

	// The whole creation rolled back; the searchable field is not there.
	m, err := env.models.GetModel(ctx, testVersion, customer.ModelID)
	require.NoError(t, err)
	assert.Nil(t, m.FieldByName("bio"))
}

func TestLanguageFieldRemovedWithLastSearchableField(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name: "bio",
		Type: "text",
		Text: &models.TextProps{Searchable: true},
	})
	require.NotNil(t, updated.FieldByName("language"))
	bio := updated.FieldByName("bio")

	updated, err := env.fields.DeleteField(ctx, testVersion, customer.ModelID, bio.FieldID, "env-1")
	require.NoError(t, err)
	assert.Nil(t, updated.FieldByName("bio"))
	assert.Nil(t, updated.FieldByName("language"))
}

func TestUpdateFieldTogglesSearchability(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name: "bio",
		Type: "text",
		Text: &models.TextProps{Searchable: true},
	})
	bio := updated.FieldByName("bio")

	updated, err := env.fields.UpdateField(ctx, testVersion, customer.ModelID, bio.FieldID, UpdateFieldRequest{
		Text:      &models.TextProps{Searchable: false},
		UpdatedBy: "env-1",
	})
	require.NoError(t, err)
	assert.Nil(t, updated.FieldByName("language"))

	updated, err = env.fields.UpdateField(ctx, testVersion, customer.ModelID, bio.FieldID, UpdateFieldRequest{
		Text:      &models.TextProps{Searchable: true, Language: "german"},
		UpdatedBy: "env-1",
	})
	require.NoError(t, err)
	lang := updated.FieldByName("language")
	require.NotNil(t, lang)
	assert.Equal(t, "german", lang.DefaultValue)
}

func TestUpdateFieldRenamesPairedSubModel(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "profile",
		Type:             "object",
		ObjectTimestamps: models.DefaultTimestamps(),
	})
	field := updated.FieldByName("profile")

	updated, err := env.fields.UpdateField(ctx, testVersion, customer.ModelID, field.FieldID, UpdateFieldRequest{
		Name:      strPtr("details"),
		UpdatedBy: "env-1",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.FieldByName("details"))

	sub, err := env.models.GetModelByIID(ctx, testVersion, field.Object.IID)
	require.NoError(t, err)
	assert.Equal(t, "details", sub.Name)
}

func TestUpdateFieldSystemFieldsLocked(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")
	id := customer.FieldByName("_id")
	require.NotNil(t, id)

	_, err := env.fields.UpdateField(ctx, testVersion, customer.ModelID, id.FieldID, UpdateFieldRequest{
		Name:      strPtr("identifier"),
		UpdatedBy: "env-1",
	})
	assert.True(t, engine.IsNotAllowed(err))

	updated, err := env.fields.UpdateField(ctx, testVersion, customer.ModelID, id.FieldID, UpdateFieldRequest{
		Description: strPtr("primary key"),
		UpdatedBy:   "env-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "primary key", updated.FieldByName("_id").Description)
}

func TestDeleteFieldSystemFieldsLocked(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")
	id := customer.FieldByName("_id")

	_, err := env.fields.DeleteField(context.Background(), testVersion, customer.ModelID, id.FieldID, "env-1")
	assert.True(t, engine.IsNotAllowed(err))
}

func TestDeleteObjectFieldCascades(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "profile",
		Type:             "object",
		ObjectTimestamps: models.DefaultTimestamps(),
	})
	field := updated.FieldByName("profile")

	// Another model referencing the sub-model.
	order := env.createModel(t, "order")
	env.createField(t, order.ModelID, CreateFieldRequest{
		Name: "note", Type: "text",
	})
	orderModel, err := env.models.GetModel(ctx, testVersion, order.ModelID)
	require.NoError(t, err)
	_, err = env.store.PushFields(ctx, testVersion, orderModel.ModelID, "env-1", models.Field{
		FieldID:   "f-ref-profile",
		IID:       "fld-ref-profile",
		Name:      "profileRef",
		Type:      "reference",
		Creator:   models.FieldCreatorUser,
		Reference: &models.ReferenceProps{IID: field.Object.IID},
	})
	require.NoError(t, err)

	updated, err = env.fields.DeleteField(ctx, testVersion, customer.ModelID, field.FieldID, "env-1")
	require.NoError(t, err)
	assert.Nil(t, updated.FieldByName("profile"))

	_, err = env.models.GetModelByIID(ctx, testVersion, field.Object.IID)
	assert.True(t, engine.IsNotFound(err))

	orderModel, err = env.models.GetModel(ctx, testVersion, order.ModelID)
	require.NoError(t, err)
	assert.Nil(t, orderModel.FieldByName("profileRef"))
	assert.NotNil(t, orderModel.FieldByName("note"))
}

func TestDeleteFieldsSkipsSystemFields(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")
	updated := env.createField(t, customer.ModelID, CreateFieldRequest{Name: "email", Type: "text"})

	id := updated.FieldByName("_id")
	email := updated.FieldByName("email")

	updated, err := env.fields.DeleteFields(ctx, testVersion, customer.ModelID,
		[]string{id.FieldID, email.FieldID}, "env-1")
	require.NoError(t, err)
	assert.NotNil(t, updated.FieldByName("_id"))
	assert.Nil(t, updated.FieldByName("email"))

	_, err = env.fields.DeleteFields(ctx, testVersion, customer.ModelID, []string{id.FieldID}, "env-1")
	assert.True(t, engine.IsNotFound(err))
}

func TestReorderFields(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")
	updated := env.createField(t, customer.ModelID, CreateFieldRequest{Name: "email", Type: "text"})
	updated = env.createField(t, customer.ModelID, CreateFieldRequest{Name: "name", Type: "text"})

	email := updated.FieldByName("email")
	name := updated.FieldByName("name")

	updated, err := env.fields.ReorderFields(ctx, testVersion, customer.ModelID, []FieldOrder{
		{FieldID: email.FieldID, Order: name.Order + engine.OrderStep},
	}, "env-1")
	require.NoError(t, err)
	assert.Greater(t, updated.FieldByName("email").Order, updated.FieldByName("name").Order)

	_, err = env.fields.ReorderFields(ctx, testVersion, customer.ModelID, []FieldOrder{
		{FieldID: "f-missing", Order: engine.OrderStep},
	}, "env-1")
	assert.True(t, engine.IsNotFound(err))
}

func TestValidationRuleLifecycle(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")
	updated := env.createField(t, customer.ModelID, CreateFieldRequest{Name: "age", Type: "integer"})
	age := updated.FieldByName("age")

	updated, err := env.fields.AddValidationRule(ctx, testVersion, customer.ModelID, age.FieldID,
		AddValidationRuleRequest{Kind: models.RuleKindExpression, Rule: "value >= 0", ErrorMessage: "must not be negative", CreatedBy: "env-1"})
	require.NoError(t, err)

	rules := updated.FieldByName("age").ValidationRules
	require.Len(t, rules, 1)
	assert.Equal(t, engine.OrderStep, rules[0].Order)
	assert.Contains(t, rules[0].IID, "rul-")

	updated, err = env.fields.AddValidationRule(ctx, testVersion, customer.ModelID, age.FieldID,
		AddValidationRuleRequest{Kind: models.RuleKindExpression, Rule: "value < 150", CreatedBy: "env-1"})
	require.NoError(t, err)
	rules = updated.FieldByName("age").ValidationRules
	require.Len(t, rules, 2)
	assert.Equal(t, 2*engine.OrderStep, rules[1].Order)

	updated, err = env.fields.UpdateValidationRule(ctx, testVersion, customer.ModelID, age.FieldID, rules[0].RuleID,
		UpdateValidationRuleRequest{Rule: strPtr("value > 0"), UpdatedBy: "env-1"})
	require.NoError(t, err)
	assert.Equal(t, "value > 0", updated.FieldByName("age").ValidationRules[0].Rule)

	updated, err = env.fields.DeleteValidationRule(ctx, testVersion, customer.ModelID, age.FieldID, rules[0].RuleID, "env-1")
	require.NoError(t, err)
	require.Len(t, updated.FieldByName("age").ValidationRules, 1)
	assert.Equal(t, "value < 150", updated.FieldByName("age").ValidationRules[0].Rule)
}

func TestValidationRulesRejectedOnStructuralFields(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	ctx := context.Background()
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:             "profile",
		Type:             "object",
		ObjectTimestamps: models.DefaultTimestamps(),
	})
	profile := updated.FieldByName("profile")
	id := updated.FieldByName("_id")

	_, err := env.fields.AddValidationRule(ctx, testVersion, customer.ModelID, profile.FieldID,
		AddValidationRuleRequest{Kind: models.RuleKindExpression, Rule: "x", CreatedBy: "env-1"})
	assert.True(t, engine.IsNotAllowed(err))

	_, err = env.fields.AddValidationRule(ctx, testVersion, customer.ModelID, id.FieldID,
		AddValidationRuleRequest{Kind: models.RuleKindExpression, Rule: "x", CreatedBy: "env-1"})
	assert.True(t, engine.IsNotAllowed(err))
}

func TestCreateBasicValuesListField(t *testing.T) {
	env := newTestEnv(t, engine.EngineMongoDB)
	customer := env.createModel(t, "customer")

	updated := env.createField(t, customer.ModelID, CreateFieldRequest{
		Name:            "nicknames",
		Type:            "basic-values-list",
		BasicValuesList: &models.BasicValuesListProps{Kind: "text"},
	})
	field := updated.FieldByName("nicknames")
	require.NotNil(t, field)
	assert.Equal(t, "array", field.DBType)

	_, err := env.fields.CreateField(context.Background(), CreateFieldRequest{
		VersionID:       testVersion,
		ModelID:         customer.ModelID,
		Name:            "stuff",
		Type:            "basic-values-list",
		BasicValuesList: &models.BasicValuesListProps{Kind: "object"},
		CreatedBy:       "env-1",
	})
	assert.True(t, engine.IsValidationError(err))
}
