package directors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"modelforge/src/engine"
	"modelforge/src/helpers"
	"modelforge/src/models"
	"modelforge/src/settings"
)

// DatabaseService manages operations on logical databases.
type DatabaseService struct {
	store      engine.DatabaseStore
	modelStore engine.ModelStore
	planner    *engine.CascadePlanner
	typings    *TypingsService
	settings   *settings.Arguments
	logger     *zap.SugaredLogger
}

// NewDatabaseService creates a new DatabaseService. The typings service may
// be nil when no tooling listens for refreshes.
func NewDatabaseService(store engine.DatabaseStore, modelStore engine.ModelStore,
	planner *engine.CascadePlanner, typings *TypingsService,
	settings *settings.Arguments,
	logger *zap.SugaredLogger) *DatabaseService {
	return &DatabaseService{
		store:      store,
		modelStore: modelStore,
		planner:    planner,
		typings:    typings,
		settings:   settings,
		logger:     logger,
	}
}

type CreateDatabaseRequest struct {
	VersionID   string
	Name        string
	Engine      string
	Description string
	CreatedBy   string
}

// CreateDatabase registers a new logical database. The engine kind must be
// one of the supported enumeration and is immutable afterwards.
func (s *DatabaseService) CreateDatabase(ctx context.Context, req CreateDatabaseRequest) (*models.Database, error) {
	if !engine.KnownEngine(req.Engine) {
		return nil, engine.NewValidationError("unknown database engine %q", req.Engine)
	}

	existing, err := s.store.GetDatabasesByVersion(ctx, req.VersionID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Name == req.Name {
			return nil, engine.NewValidationError("a database named %q already exists in this version", req.Name)
		}
	}

	now := time.Now()
	db := &models.Database{
		DatabaseID:  helpers.GenerateUUID(),
		VersionID:   req.VersionID,
		IID:         helpers.GenerateSlug("dbs"),
		Name:        req.Name,
		Description: req.Description,
		Engine:      req.Engine,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDatabase(ctx, db); err != nil {
		return nil, err
	}

	s.logger.Infow("created database", "name", db.Name, "engine", db.Engine, "versionId", db.VersionID)
	return db, nil
}

func (s *DatabaseService) GetDatabase(ctx context.Context, versionID, databaseID string) (*models.Database, error) {
	return s.store.GetDatabaseByID(ctx, versionID, databaseID)
}

func (s *DatabaseService) ListDatabases(ctx context.Context, versionID string) ([]models.Database, error) {
	return s.store.GetDatabasesByVersion(ctx, versionID)
}

// UpdateDatabaseMeta renames or re-describes a database. The engine kind
// cannot change; requests carrying one are rejected upstream by shape
// validation and have no representation here.
func (s *DatabaseService) UpdateDatabaseMeta(ctx context.Context, versionID, databaseID string, meta engine.DatabaseMetaUpdate) (*models.Database, error) {
	if meta.Name != nil {
		existing, err := s.store.GetDatabasesByVersion(ctx, versionID)
		if err != nil {
			return nil, err
		}
		for i := range existing {
			if existing[i].Name == *meta.Name && existing[i].DatabaseID != databaseID {
				return nil, engine.NewValidationError("a database named %q already exists in this version", *meta.Name)
			}
		}
	}
	return s.store.UpdateDatabaseMeta(ctx, versionID, databaseID, meta)
}

// DeleteDatabase removes a database together with every model in it. The
// whole removal runs in one session: reference fields elsewhere in the
// version that point into the database are stripped before its models go.
func (s *DatabaseService) DeleteDatabase(ctx context.Context, versionID, databaseID, deletedBy string) error {
	db, err := s.store.GetDatabaseByID(ctx, versionID, databaseID)
	if err != nil {
		return err
	}

	err = s.modelStore.WithTransaction(ctx, func(ctx context.Context) error {
		targets, err := s.modelStore.GetTopLevelModels(ctx, versionID, databaseID)
		if err != nil {
			return err
		}
		plan, err := s.planner.PlanModelDeletion(ctx, versionID, targets)
		if err != nil {
			return err
		}
		if err := s.planner.Apply(ctx, plan, deletedBy); err != nil {
			return err
		}
		return s.store.DeleteDatabase(ctx, versionID, databaseID)
	})
	if err != nil {
		return err
	}

	s.logger.Infow("deleted database", "name", db.Name, "versionId", versionID)
	notifyTypings(s.typings, s.logger, versionID, deletedBy)
	return nil
}
