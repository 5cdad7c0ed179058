package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"modelforge/src/models"
)

// MemoryStorageEngine is an in-memory implementation of ModelStore and
// DatabaseStore. It backs unit tests and local runs without a document
// store. Transactions take a snapshot of both working sets and restore it
// when the callback fails, mirroring the rollback semantics of the MongoDB
// engine under a single writer.
type MemoryStorageEngine struct {
	mu        sync.Mutex
	models    map[string]*models.Model
	databases map[string]*models.Database
}

func NewMemoryStorageEngine() *MemoryStorageEngine {
	return &MemoryStorageEngine{
		models:    make(map[string]*models.Model),
		databases: make(map[string]*models.Database),
	}
}

type memTxKey struct{}

// lock acquires the engine mutex unless ctx already runs inside a
// transaction, which holds the mutex for its whole extent.
func (s *MemoryStorageEngine) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStorageEngine) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapModels := make(map[string]*models.Model, len(s.models))
	for id, m := range s.models {
		snapModels[id] = m.Clone()
	}
	snapDatabases := make(map[string]*models.Database, len(s.databases))
	for id, db := range s.databases {
		v := *db
		snapDatabases[id] = &v
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.models = snapModels
		s.databases = snapDatabases
		return err
	}
	return nil
}

func (s *MemoryStorageEngine) GetModelByID(ctx context.Context, versionID, modelID string) (*models.Model, error) {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return nil, NewNotFoundError("model not found")
	}
	return m.Clone(), nil
}

func (s *MemoryStorageEngine) GetModelByIID(ctx context.Context, versionID, iid string) (*models.Model, error) {
	defer s.lock(ctx)()
	for _, m := range s.models {
		if m.VersionID == versionID && m.IID == iid {
			return m.Clone(), nil
		}
	}
	return nil, NewNotFoundError("model not found")
}

func (s *MemoryStorageEngine) GetModelsByIDs(ctx context.Context, versionID string, modelIDs []string) ([]models.Model, error) {
	defer s.lock(ctx)()
	wanted := make(map[string]bool, len(modelIDs))
	for _, id := range modelIDs {
		wanted[id] = true
	}
	var result []models.Model
	for _, m := range s.models {
		if m.VersionID == versionID && wanted[m.ModelID] {
			result = append(result, *m.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStorageEngine) GetModelsByDatabase(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	defer s.lock(ctx)()
	var result []models.Model
	for _, m := range s.models {
		if m.VersionID == versionID && m.DatabaseID == databaseID {
			result = append(result, *m.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStorageEngine) GetTopLevelModels(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	all, err := s.GetModelsByDatabase(ctx, versionID, databaseID)
	if err != nil {
		return nil, err
	}
	var result []models.Model
	for _, m := range all {
		if m.IsTopLevel() {
			result = append(result, m)
		}
	}
	return result, nil
}

func (s *MemoryStorageEngine) GetReferencingModels(ctx context.Context, versionID string, targetIIDs []string) ([]models.Model, error) {
	defer s.lock(ctx)()
	targets := make(map[string]bool, len(targetIIDs))
	for _, iid := range targetIIDs {
		targets[iid] = true
	}
	var result []models.Model
	for _, m := range s.models {
		if m.VersionID != versionID {
			continue
		}
		for i := range m.Fields {
			if targets[m.Fields[i].ReferenceIID()] {
				result = append(result, *m.Clone())
				break
			}
		}
	}
	return result, nil
}

func (s *MemoryStorageEngine) CreateModel(ctx context.Context, model *models.Model) error {
	defer s.lock(ctx)()
	s.models[model.ModelID] = model.Clone()
	return nil
}

func (s *MemoryStorageEngine) UpdateModelMeta(ctx context.Context, versionID, modelID string, meta ModelMetaUpdate) (*models.Model, error) {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return nil, NewNotFoundError("model not found")
	}
	if meta.Name != nil {
		m.Name = *meta.Name
	}
	if meta.Description != nil {
		m.Description = *meta.Description
	}
	m.UpdatedBy = meta.UpdatedBy
	m.UpdatedAt = time.Now()
	return m.Clone(), nil
}

func (s *MemoryStorageEngine) SetModelNameByIID(ctx context.Context, versionID, iid, name, updatedBy string) error {
	defer s.lock(ctx)()
	for _, m := range s.models {
		if m.VersionID == versionID && m.IID == iid {
			m.Name = name
			m.UpdatedBy = updatedBy
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return NewNotFoundError("model not found")
}

func (s *MemoryStorageEngine) SetModelTimestamps(ctx context.Context, versionID, modelID string, ts models.Timestamps, updatedBy string) error {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return NewNotFoundError("model not found")
	}
	m.Timestamps = ts
	m.UpdatedBy = updatedBy
	m.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorageEngine) PushFields(ctx context.Context, versionID, modelID, updatedBy string, fields ...models.Field) (*models.Model, error) {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return nil, NewNotFoundError("model not found")
	}
	for i := range fields {
		m.Fields = append(m.Fields, *fields[i].Clone())
	}
	m.UpdatedBy = updatedBy
	m.UpdatedAt = time.Now()
	return m.Clone(), nil
}

func (s *MemoryStorageEngine) PullFieldsByID(ctx context.Context, versionID, modelID string, fieldIDs []string, updatedBy string) (*models.Model, error) {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return nil, NewNotFoundError("model not found")
	}
	doomed := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		doomed[id] = true
	}
	kept := m.Fields[:0]
	for i := range m.Fields {
		if !doomed[m.Fields[i].FieldID] {
			kept = append(kept, m.Fields[i])
		}
	}
	m.Fields = kept
	m.UpdatedBy = updatedBy
	m.UpdatedAt = time.Now()
	return m.Clone(), nil
}

func (s *MemoryStorageEngine) ReplaceField(ctx context.Context, versionID, modelID string, field models.Field, updatedBy string) (*models.Model, error) {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return nil, NewNotFoundError("model not found")
	}
	for i := range m.Fields {
		if m.Fields[i].FieldID == field.FieldID {
			m.Fields[i] = *field.Clone()
			m.UpdatedBy = updatedBy
			m.UpdatedAt = time.Now()
			return m.Clone(), nil
		}
	}
	return nil, NewNotFoundError("field not found")
}

func (s *MemoryStorageEngine) SetFieldOrder(ctx context.Context, versionID, modelID, fieldID string, order int, updatedBy string) error {
	defer s.lock(ctx)()
	m, ok := s.models[modelID]
	if !ok || m.VersionID != versionID {
		return NewNotFoundError("model not found")
	}
	for i := range m.Fields {
		if m.Fields[i].FieldID == fieldID {
			m.Fields[i].Order = order
			m.UpdatedBy = updatedBy
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return NewNotFoundError("field not found")
}

func (s *MemoryStorageEngine) DeleteModelsByIDs(ctx context.Context, versionID string, modelIDs []string) (int64, error) {
	defer s.lock(ctx)()
	var deleted int64
	for _, id := range modelIDs {
		if m, ok := s.models[id]; ok && m.VersionID == versionID {
			delete(s.models, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStorageEngine) GetDatabaseByID(ctx context.Context, versionID, databaseID string) (*models.Database, error) {
	defer s.lock(ctx)()
	db, ok := s.databases[databaseID]
	if !ok || db.VersionID != versionID {
		return nil, NewNotFoundError("database not found")
	}
	v := *db
	return &v, nil
}

func (s *MemoryStorageEngine) GetDatabasesByVersion(ctx context.Context, versionID string) ([]models.Database, error) {
	defer s.lock(ctx)()
	var result []models.Database
	for _, db := range s.databases {
		if db.VersionID == versionID {
			result = append(result, *db)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStorageEngine) CreateDatabase(ctx context.Context, db *models.Database) error {
	defer s.lock(ctx)()
	v := *db
	s.databases[db.DatabaseID] = &v
	return nil
}

func (s *MemoryStorageEngine) UpdateDatabaseMeta(ctx context.Context, versionID, databaseID string, meta DatabaseMetaUpdate) (*models.Database, error) {
	defer s.lock(ctx)()
	db, ok := s.databases[databaseID]
	if !ok || db.VersionID != versionID {
		return nil, NewNotFoundError("database not found")
	}
	if meta.Name != nil {
		db.Name = *meta.Name
	}
	if meta.Description != nil {
		db.Description = *meta.Description
	}
	db.UpdatedBy = meta.UpdatedBy
	db.UpdatedAt = time.Now()
	v := *db
	return &v, nil
}

func (s *MemoryStorageEngine) DeleteDatabase(ctx context.Context, versionID, databaseID string) error {
	defer s.lock(ctx)()
	db, ok := s.databases[databaseID]
	if !ok || db.VersionID != versionID {
		return NewNotFoundError("database not found")
	}
	delete(s.databases, databaseID)
	return nil
}
