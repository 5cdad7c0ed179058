package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"modelforge/src/models"
)

// Resolver computes the dependency closure of models and fields. The forest
// is linked purely through stable iids (object.iid / objectList.iid point
// down, parentiid points up), so every traversal step is a store lookup and
// works on any subset fetched from the store.
type Resolver struct {
	store  ModelStore
	logger *zap.SugaredLogger
}

func NewResolver(store ModelStore, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// DependentModelsOfField returns every sub-model transitively nested under
// an object or object-list field. Fields of any other type have no
// dependents.
func (r *Resolver) DependentModelsOfField(ctx context.Context, model *models.Model, field *models.Field) ([]models.Model, error) {
	visited := make(map[string]bool)
	var out []models.Model
	if err := r.collectFieldDependents(ctx, model.VersionID, field, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DependentModelsOfModel returns the model's full nested closure: the model
// itself when it is a sub-model, plus every sub-model reachable through its
// object/object-list fields. Used when an entire top-level model and
// everything nested under it is being removed.
func (r *Resolver) DependentModelsOfModel(ctx context.Context, model *models.Model) ([]models.Model, error) {
	visited := make(map[string]bool)
	var out []models.Model
	if err := r.collectModelDependents(ctx, model, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) collectFieldDependents(ctx context.Context, versionID string, field *models.Field, visited map[string]bool, out *[]models.Model) error {
	iid := field.PairedModelIID()
	if iid == "" {
		return nil
	}

	// The forest is acyclic by construction; a revisit means the linkage is
	// corrupt and unbounded recursion would follow.
	if visited[iid] {
		return fmt.Errorf("model hierarchy cycle detected at %s", iid)
	}
	visited[iid] = true

	subModel, err := r.store.GetModelByIID(ctx, versionID, iid)
	if err != nil {
		if IsNotFound(err) {
			r.logger.Warnw("nested field points at a missing sub-model", "iid", iid, "field", field.Name)
			return nil
		}
		return err
	}

	*out = append(*out, *subModel)
	for i := range subModel.Fields {
		element := &subModel.Fields[i]
		if !element.IsNested() {
			continue
		}
		if err := r.collectFieldDependents(ctx, versionID, element, visited, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) collectModelDependents(ctx context.Context, model *models.Model, visited map[string]bool, out *[]models.Model) error {
	if visited[model.IID] {
		return fmt.Errorf("model hierarchy cycle detected at %s", model.IID)
	}
	visited[model.IID] = true

	if !model.IsTopLevel() {
		*out = append(*out, *model)
	}

	for i := range model.Fields {
		element := &model.Fields[i]
		if !element.IsNested() {
			continue
		}
		iid := element.PairedModelIID()
		if iid == "" {
			continue
		}
		subModel, err := r.store.GetModelByIID(ctx, model.VersionID, iid)
		if err != nil {
			if IsNotFound(err) {
				r.logger.Warnw("nested field points at a missing sub-model", "iid", iid, "field", element.Name)
				continue
			}
			return err
		}
		if err := r.collectModelDependents(ctx, subModel, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// DependentReferenceFields returns every model in the version holding at
// least one reference field that points into the given model set. Each
// returned model's field list is trimmed down to exactly those offending
// reference fields; its other fields are irrelevant to the caller and must
// not be touched.
func (r *Resolver) DependentReferenceFields(ctx context.Context, versionID string, set []models.Model) ([]models.Model, error) {
	if len(set) == 0 {
		return nil, nil
	}

	iids := make([]string, 0, len(set))
	targets := make(map[string]bool, len(set))
	for i := range set {
		iids = append(iids, set[i].IID)
		targets[set[i].IID] = true
	}

	matches, err := r.store.GetReferencingModels(ctx, versionID, iids)
	if err != nil {
		return nil, err
	}

	for i := range matches {
		offending := matches[i].Fields[:0]
		for j := range matches[i].Fields {
			if targets[matches[i].Fields[j].ReferenceIID()] {
				offending = append(offending, matches[i].Fields[j])
			}
		}
		matches[i].Fields = offending
	}
	return matches, nil
}
