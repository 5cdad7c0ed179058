package directors

import (
	"context"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"modelforge/src/engine"
	"modelforge/src/helpers"
	"modelforge/src/models"
	"modelforge/src/settings"
)

// ModelService manages top-level model operations. Sub-models are never
// created or deleted directly; they come and go as a side effect of the
// object/object-list field operations in FieldService.
type ModelService struct {
	store    engine.ModelStore
	dbStore  engine.DatabaseStore
	resolver *engine.Resolver
	planner  *engine.CascadePlanner
	typings  *TypingsService
	settings *settings.Arguments
	logger   *zap.SugaredLogger
}

func NewModelService(store engine.ModelStore, dbStore engine.DatabaseStore,
	resolver *engine.Resolver, planner *engine.CascadePlanner, typings *TypingsService,
	settings *settings.Arguments,
	logger *zap.SugaredLogger) *ModelService {
	return &ModelService{
		store:    store,
		dbStore:  dbStore,
		resolver: resolver,
		planner:  planner,
		typings:  typings,
		settings: settings,
		logger:   logger,
	}
}

type CreateModelRequest struct {
	VersionID   string
	DatabaseID  string
	Name        string
	Description string
	Timestamps  models.Timestamps
	CreatedBy   string
}

// CreateModel creates a top-level model with its system managed default
// fields synthesized for the owning database's engine.
func (s *ModelService) CreateModel(ctx context.Context, req CreateModelRequest) (*models.Model, error) {
	db, err := s.dbStore.GetDatabaseByID(ctx, req.VersionID, req.DatabaseID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetModelsByDatabase(ctx, req.VersionID, req.DatabaseID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Name == req.Name {
			return nil, engine.NewValidationError("a model named %q already exists in database %q", req.Name, db.Name)
		}
	}

	now := time.Now()
	model := &models.Model{
		ModelID:     helpers.GenerateUUID(),
		VersionID:   req.VersionID,
		DatabaseID:  req.DatabaseID,
		IID:         helpers.GenerateSlug("mdl"),
		Name:        req.Name,
		Description: req.Description,
		Kind:        models.ModelKindModel,
		Timestamps:  req.Timestamps,
		Fields:      engine.DefaultFields(engine.Engine(db.Engine), req.Timestamps, req.CreatedBy, models.ModelKindModel),
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateModel(ctx, model); err != nil {
		return nil, err
	}

	s.logger.Infow("created model", "name", model.Name, "database", db.Name)
	notifyTypings(s.typings, s.logger, req.VersionID, req.CreatedBy)
	return model, nil
}

func (s *ModelService) GetModel(ctx context.Context, versionID, modelID string) (*models.Model, error) {
	return s.store.GetModelByID(ctx, versionID, modelID)
}

func (s *ModelService) GetModelByIID(ctx context.Context, versionID, iid string) (*models.Model, error) {
	return s.store.GetModelByIID(ctx, versionID, iid)
}

func (s *ModelService) ListModels(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	return s.store.GetModelsByDatabase(ctx, versionID, databaseID)
}

// ListReferenceableModels returns the models a reference field may point at:
// the database's top-level models, sorted by name.
func (s *ModelService) ListReferenceableModels(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	return s.store.GetTopLevelModels(ctx, versionID, databaseID)
}

// FullModelName returns the dotted path of a model from its top-level
// ancestor down, e.g. "customer.profile.addresses". Top-level models return
// their own name.
func (s *ModelService) FullModelName(ctx context.Context, versionID, modelID string) (string, error) {
	mdl, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return "", err
	}

	segments := []string{mdl.Name}
	seen := map[string]bool{mdl.IID: true}
	for mdl.ParentIID != "" {
		if mdl, err = s.store.GetModelByIID(ctx, versionID, mdl.ParentIID); err != nil {
			return "", err
		}
		if seen[mdl.IID] {
			return "", engine.NewValidationError("model ancestry of %q contains a cycle", modelID)
		}
		seen[mdl.IID] = true
		segments = append([]string{mdl.Name}, segments...)
	}
	return strings.Join(segments, "."), nil
}

// UpdateModelMeta renames or re-describes a model.
func (s *ModelService) UpdateModelMeta(ctx context.Context, versionID, modelID string, meta engine.ModelMetaUpdate) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}

	if meta.Name != nil && *meta.Name != model.Name {
		siblings, err := s.store.GetModelsByDatabase(ctx, versionID, model.DatabaseID)
		if err != nil {
			return nil, err
		}
		for i := range siblings {
			if siblings[i].Name == *meta.Name && siblings[i].ModelID != modelID {
				return nil, engine.NewValidationError("a model named %q already exists in this database", *meta.Name)
			}
		}
	}

	updated, err := s.store.UpdateModelMeta(ctx, versionID, modelID, meta)
	if err != nil {
		return nil, err
	}
	notifyTypings(s.typings, s.logger, versionID, meta.UpdatedBy)
	return updated, nil
}

// EnableTimestamps adds the system managed created/updated timestamp fields
// to a model that does not have them yet.
func (s *ModelService) EnableTimestamps(ctx context.Context, versionID, modelID, createdAtName, updatedAtName, updatedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	if model.Timestamps.Enabled {
		return nil, engine.NewNotAllowedError("model %q already has timestamps enabled", model.Name)
	}

	db, err := s.dbStore.GetDatabaseByID(ctx, versionID, model.DatabaseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := engine.NewFieldOrderNumber(model)
	createdAt := models.Field{
		FieldID:   helpers.GenerateUUID(),
		IID:       helpers.GenerateSlug("fld"),
		Name:      createdAtName,
		Type:      "createdat",
		DBType:    engine.PhysicalType(engine.Engine(db.Engine), "createdat"),
		Creator:   models.FieldCreatorSystem,
		Order:     order,
		Required:  true,
		Immutable: true,
		Indexed:   true,
		CreatedBy: updatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	updatedAt := models.Field{
		FieldID:   helpers.GenerateUUID(),
		IID:       helpers.GenerateSlug("fld"),
		Name:      updatedAtName,
		Type:      "updatedat",
		DBType:    engine.PhysicalType(engine.Engine(db.Engine), "updatedat"),
		Creator:   models.FieldCreatorSystem,
		Order:     order + engine.OrderStep,
		Required:  true,
		Indexed:   true,
		CreatedBy: updatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var updated *models.Model
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if updated, err = s.store.PushFields(ctx, versionID, modelID, updatedBy, createdAt, updatedAt); err != nil {
			return err
		}
		ts := models.Timestamps{Enabled: true, CreatedAt: createdAtName, UpdatedAt: updatedAtName}
		return s.store.SetModelTimestamps(ctx, versionID, modelID, ts, updatedBy)
	})
	if err != nil {
		return nil, err
	}
	updated.Timestamps = models.Timestamps{Enabled: true, CreatedAt: createdAtName, UpdatedAt: updatedAtName}

	notifyTypings(s.typings, s.logger, versionID, updatedBy)
	return updated, nil
}

// DisableTimestamps removes the system managed timestamp fields from a
// model.
func (s *ModelService) DisableTimestamps(ctx context.Context, versionID, modelID, updatedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	if !model.Timestamps.Enabled {
		return nil, engine.NewNotAllowedError("model %q does not have timestamps to disable", model.Name)
	}

	var doomed []string
	for i := range model.Fields {
		if model.Fields[i].Type == "createdat" || model.Fields[i].Type == "updatedat" {
			doomed = append(doomed, model.Fields[i].FieldID)
		}
	}

	var updated *models.Model
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if updated, err = s.store.PullFieldsByID(ctx, versionID, modelID, doomed, updatedBy); err != nil {
			return err
		}
		ts := models.DefaultTimestamps()
		return s.store.SetModelTimestamps(ctx, versionID, modelID, ts, updatedBy)
	})
	if err != nil {
		return nil, err
	}
	updated.Timestamps = models.DefaultTimestamps()

	notifyTypings(s.typings, s.logger, versionID, updatedBy)
	return updated, nil
}

// DeleteModel removes one top-level model and everything that depends on
// it.
func (s *ModelService) DeleteModel(ctx context.Context, versionID, modelID, deletedBy string) error {
	return s.DeleteModels(ctx, versionID, []string{modelID}, deletedBy)
}

// DeleteModels removes a set of top-level models. The cascade is computed
// over the whole batch and applied in one session: dangling reference
// fields are stripped first, then the targets and their nested sub-models
// are removed in a single bulk deletion.
func (s *ModelService) DeleteModels(ctx context.Context, versionID string, modelIDs []string, deletedBy string) error {
	targets, err := s.store.GetModelsByIDs(ctx, versionID, modelIDs)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return engine.NewNotFoundError("no models found to delete")
	}
	var invalid error
	for i := range targets {
		if !targets[i].IsTopLevel() {
			invalid = multierr.Append(invalid,
				engine.NewNotAllowedError("%q is not a top level model; only top level models can be deleted", targets[i].Name))
		}
	}
	if invalid != nil {
		return invalid
	}

	if err := s.planner.DeleteModels(ctx, versionID, targets, deletedBy); err != nil {
		return err
	}

	for i := range targets {
		s.logger.Infow("deleted model", "name", targets[i].Name, "versionId", versionID)
	}
	notifyTypings(s.typings, s.logger, versionID, deletedBy)
	return nil
}
