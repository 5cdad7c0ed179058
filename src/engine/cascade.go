package engine

import (
	"context"

	"go.uber.org/zap"

	"modelforge/src/models"
)

// CascadePlan is the computed closure of one destructive operation: the
// models explicitly targeted, every sub-model transitively nested under
// them, and the reference fields elsewhere in the version that would dangle
// once they are gone.
type CascadePlan struct {
	VersionID  string
	Targets    []models.Model
	Dependents []models.Model

	// ReferenceFields holds the affected models trimmed down to exactly the
	// offending reference fields.
	ReferenceFields []models.Model
}

// DoomedIDs returns the primary keys of every model the plan removes.
func (p *CascadePlan) DoomedIDs() []string {
	ids := make([]string, 0, len(p.Targets)+len(p.Dependents))
	for i := range p.Targets {
		ids = append(ids, p.Targets[i].ModelID)
	}
	for i := range p.Dependents {
		ids = append(ids, p.Dependents[i].ModelID)
	}
	return ids
}

// CascadePlanner sequences multi-step deletions. A cascade always runs in
// this order: collect dependents, strip dangling reference fields, remove
// dependent sub-models together with the targets. References must be
// stripped before the referenced models vanish, otherwise a reference field
// would transiently point at a nonexistent model.
type CascadePlanner struct {
	store    ModelStore
	resolver *Resolver
	logger   *zap.SugaredLogger
}

func NewCascadePlanner(store ModelStore, resolver *Resolver, logger *zap.SugaredLogger) *CascadePlanner {
	return &CascadePlanner{store: store, resolver: resolver, logger: logger}
}

// PlanModelDeletion computes the cascade for removing a set of models. The
// reads run on ctx so that, when the caller is inside a session, the plan is
// resolved against the same forest the writes will see.
func (cp *CascadePlanner) PlanModelDeletion(ctx context.Context, versionID string, targets []models.Model) (*CascadePlan, error) {
	plan := &CascadePlan{VersionID: versionID, Targets: targets}

	for i := range targets {
		list, err := cp.resolver.DependentModelsOfModel(ctx, &targets[i])
		if err != nil {
			return nil, err
		}
		for j := range list {
			// A top-level target would appear in its own dependent list only
			// on corrupt linkage; sub-model targets are already in Targets.
			if list[j].IID != targets[i].IID {
				plan.Dependents = append(plan.Dependents, list[j])
			}
		}
	}

	doomed := append(append([]models.Model{}, plan.Targets...), plan.Dependents...)
	refs, err := cp.resolver.DependentReferenceFields(ctx, versionID, doomed)
	if err != nil {
		return nil, err
	}
	plan.ReferenceFields = refs
	return plan, nil
}

// PlanFieldDeletion computes the cascade for removing fields from a model.
// Only object/object-list fields contribute dependents; the owning model
// itself is not part of the plan (the caller pulls the fields afterwards).
func (cp *CascadePlanner) PlanFieldDeletion(ctx context.Context, model *models.Model, fields []models.Field) (*CascadePlan, error) {
	plan := &CascadePlan{VersionID: model.VersionID}

	for i := range fields {
		if !fields[i].IsNested() {
			continue
		}
		list, err := cp.resolver.DependentModelsOfField(ctx, model, &fields[i])
		if err != nil {
			return nil, err
		}
		plan.Dependents = append(plan.Dependents, list...)
	}

	if len(plan.Dependents) > 0 {
		refs, err := cp.resolver.DependentReferenceFields(ctx, model.VersionID, plan.Dependents)
		if err != nil {
			return nil, err
		}
		plan.ReferenceFields = refs
	}
	return plan, nil
}

// Apply executes a plan on ctx: first a field-level pull of every offending
// reference field, then one bulk removal of the doomed models. Apply does
// not open a session; it is composed into the caller's transaction.
func (cp *CascadePlanner) Apply(ctx context.Context, plan *CascadePlan, updatedBy string) error {
	for i := range plan.ReferenceFields {
		affected := &plan.ReferenceFields[i]
		fieldIDs := make([]string, 0, len(affected.Fields))
		for j := range affected.Fields {
			fieldIDs = append(fieldIDs, affected.Fields[j].FieldID)
		}
		if _, err := cp.store.PullFieldsByID(ctx, plan.VersionID, affected.ModelID, fieldIDs, updatedBy); err != nil {
			return err
		}
		cp.logger.Debugw("stripped dangling reference fields",
			"model", affected.Name, "fields", len(fieldIDs))
	}

	ids := plan.DoomedIDs()
	if len(ids) == 0 {
		return nil
	}
	deleted, err := cp.store.DeleteModelsByIDs(ctx, plan.VersionID, ids)
	if err != nil {
		return err
	}
	cp.logger.Debugw("removed models", "count", deleted)
	return nil
}

// DeleteModels plans and applies the removal of a set of models inside one
// transactional session. Either the whole cascade commits or none of it
// does; no partial cascade is ever visible.
func (cp *CascadePlanner) DeleteModels(ctx context.Context, versionID string, targets []models.Model, updatedBy string) error {
	return cp.store.WithTransaction(ctx, func(ctx context.Context) error {
		plan, err := cp.PlanModelDeletion(ctx, versionID, targets)
		if err != nil {
			return err
		}
		return cp.Apply(ctx, plan, updatedBy)
	})
}
