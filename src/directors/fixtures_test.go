package directors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"modelforge/src/engine"
	"modelforge/src/models"
	"modelforge/src/settings"
)

const testVersion = "ver-test0001"

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// testEnv wires the full service stack over one in-memory store with a
// single database created up front. The typings service is left nil; the
// notification path has its own tests.
type testEnv struct {
	store     *engine.MemoryStorageEngine
	databases *DatabaseService
	models    *ModelService
	fields    *FieldService
	db        *models.Database
}

func newTestEnv(t *testing.T, engineKind engine.Engine) *testEnv {
	t.Helper()
	store := engine.NewMemoryStorageEngine()
	logger := zap.NewNop().Sugar()
	resolver := engine.NewResolver(store, logger)
	planner := engine.NewCascadePlanner(store, resolver, logger)
	args := &settings.Arguments{VersionID: testVersion}

	env := &testEnv{
		store:     store,
		databases: NewDatabaseService(store, store, planner, nil, args, logger),
		models:    NewModelService(store, store, resolver, planner, nil, args, logger),
		fields:    NewFieldService(store, store, planner, nil, args, logger),
	}

	db, err := env.databases.CreateDatabase(context.Background(), CreateDatabaseRequest{
		VersionID: testVersion,
		Name:      "main",
		Engine:    string(engineKind),
		CreatedBy: "env-1",
	})
	require.NoError(t, err)
	env.db = db
	return env
}

func (e *testEnv) createModel(t *testing.T, name string) *models.Model {
	t.Helper()
	m, err := e.models.CreateModel(context.Background(), CreateModelRequest{
		VersionID:  testVersion,
		DatabaseID: e.db.DatabaseID,
		Name:       name,
		Timestamps: models.DefaultTimestamps(),
		CreatedBy:  "env-1",
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) createField(t *testing.T, modelID string, req CreateFieldRequest) *models.Model {
	t.Helper()
	req.VersionID = testVersion
	req.ModelID = modelID
	req.CreatedBy = "env-1"
	updated, err := e.fields.CreateField(context.Background(), req)
	require.NoError(t, err)
	return updated
}
