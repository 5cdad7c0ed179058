package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"modelforge/src/models"
)

const (
	testVersion  = "ver-test0001"
	testDatabase = "db-main"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newModel(id, iid, name, kind, parentIID string, fields ...models.Field) *models.Model {
	return &models.Model{
		ModelID:    id,
		VersionID:  testVersion,
		DatabaseID: testDatabase,
		IID:        iid,
		Name:       name,
		Kind:       kind,
		ParentIID:  parentIID,
		Fields:     fields,
	}
}

func textField(id, name string) models.Field {
	return models.Field{
		FieldID: id,
		IID:     "fld-" + id,
		Name:    name,
		Type:    "text",
		Creator: models.FieldCreatorUser,
		Text:    &models.TextProps{},
	}
}

func objectField(id, name, targetIID string) models.Field {
	return models.Field{
		FieldID: id,
		IID:     "fld-" + id,
		Name:    name,
		Type:    "object",
		Creator: models.FieldCreatorUser,
		Object:  &models.ObjectProps{IID: targetIID},
	}
}

func objectListField(id, name, targetIID string) models.Field {
	return models.Field{
		FieldID:    id,
		IID:        "fld-" + id,
		Name:       name,
		Type:       "object-list",
		Creator:    models.FieldCreatorUser,
		ObjectList: &models.ObjectListProps{IID: targetIID},
	}
}

func referenceField(id, name, targetIID string) models.Field {
	return models.Field{
		FieldID:   id,
		IID:       "fld-" + id,
		Name:      name,
		Type:      "reference",
		Creator:   models.FieldCreatorUser,
		Reference: &models.ReferenceProps{IID: targetIID},
	}
}

// newTestForest seeds a store with a three-level nested hierarchy plus two
// models that reference into it:
//
//	customer (top)
//	  profile (object) -> profile (sub-model-object)
//	    addresses (object-list) -> addresses (sub-model-list)
//	order (top): references customer and addresses
//	invoice (top): references order
func newTestForest(t *testing.T) *MemoryStorageEngine {
	t.Helper()
	store := NewMemoryStorageEngine()
	ctx := context.Background()

	seed := []*models.Model{
		newModel("m-customer", "mdl-customer", "customer", models.ModelKindModel, "",
			textField("f-name", "name"),
			objectField("f-profile", "profile", "mdl-profile"),
		),
		newModel("m-profile", "mdl-profile", "profile", models.ModelKindSubObject, "mdl-customer",
			textField("f-bio", "bio"),
			objectListField("f-addresses", "addresses", "mdl-addresses"),
		),
		newModel("m-addresses", "mdl-addresses", "addresses", models.ModelKindSubList, "mdl-profile",
			textField("f-street", "street"),
		),
		newModel("m-order", "mdl-order", "order", models.ModelKindModel, "",
			referenceField("f-ref-customer", "customer", "mdl-customer"),
			referenceField("f-ref-address", "shippingAddress", "mdl-addresses"),
			textField("f-note", "note"),
		),
		newModel("m-invoice", "mdl-invoice", "invoice", models.ModelKindModel, "",
			referenceField("f-ref-order", "order", "mdl-order"),
		),
	}
	for _, m := range seed {
		require.NoError(t, store.CreateModel(ctx, m))
	}
	return store
}

func modelNames(list []models.Model) []string {
	names := make([]string, len(list))
	for i := range list {
		names[i] = list[i].Name
	}
	return names
}
