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

// languageFieldName is the reserved name of the full-text language field
// maintained on MongoDB models that carry searchable text.
const languageFieldName = "language"

const defaultSearchLanguage = "english"

// FieldService manages the fields of a model: creation, updates, deletion
// with cascade, display ordering and validation rules. Object and
// object-list fields are created and removed together with their paired
// sub-models.
type FieldService struct {
	store    engine.ModelStore
	dbStore  engine.DatabaseStore
	planner  *engine.CascadePlanner
	typings  *TypingsService
	settings *settings.Arguments
	logger   *zap.SugaredLogger
}

func NewFieldService(store engine.ModelStore, dbStore engine.DatabaseStore,
	planner *engine.CascadePlanner, typings *TypingsService,
	settings *settings.Arguments,
	logger *zap.SugaredLogger) *FieldService {
	return &FieldService{
		store:    store,
		dbStore:  dbStore,
		planner:  planner,
		typings:  typings,
		settings: settings,
		logger:   logger,
	}
}

type CreateFieldRequest struct {
	VersionID string
	ModelID   string

	Name        string
	Type        string
	Description string

	Required  *bool
	Unique    *bool
	Immutable *bool
	Indexed   *bool

	DefaultValue string

	Text            *models.TextProps
	RichText        *models.RichTextProps
	EncryptedText   *models.EncryptedTextProps
	Decimal         *models.DecimalProps
	Enum            *models.EnumProps
	BasicValuesList *models.BasicValuesListProps

	// ReferenceIID is the iid of the target model for reference fields.
	ReferenceIID string

	// ObjectTimestamps is the timestamps configuration of the sub-model
	// paired with an object or object-list field.
	ObjectTimestamps models.Timestamps

	CreatedBy string
}

// CreateField adds a field to a model and returns the updated model. For
// object and object-list fields the paired sub-model is created in the
// same session.
func (s *FieldService) CreateField(ctx context.Context, req CreateFieldRequest) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, req.VersionID, req.ModelID)
	if err != nil {
		return nil, err
	}
	db, err := s.dbStore.GetDatabaseByID(ctx, req.VersionID, model.DatabaseID)
	if err != nil {
		return nil, err
	}
	eng := engine.Engine(db.Engine)

	if !engine.KnownFieldType(req.Type) {
		return nil, engine.NewValidationError("unknown field type %q", req.Type)
	}
	if !engine.SupportsFieldType(eng, req.Type) {
		return nil, engine.NewValidationError("field type %q is not supported on %s databases", req.Type, db.Engine)
	}
	if model.FieldByName(req.Name) != nil {
		return nil, engine.NewValidationError("a field named %q already exists in model %q", req.Name, model.Name)
	}
	if wantsSearchable(req.Text, req.RichText) && !engine.SearchableFieldType(req.Type) {
		return nil, engine.NewValidationError("field type %q cannot be marked searchable", req.Type)
	}

	now := time.Now()
	field := models.Field{
		FieldID:         helpers.GenerateUUID(),
		IID:             helpers.GenerateSlug("fld"),
		Name:            req.Name,
		Type:            req.Type,
		DBType:          engine.PhysicalType(eng, req.Type),
		Creator:         models.FieldCreatorUser,
		Order:           engine.NewFieldOrderNumber(model),
		Description:     req.Description,
		Required:        boolValue(req.Required),
		Unique:          engine.NormalizeFieldProp(engine.PropUnique, req.Type, req.Unique),
		Immutable:       engine.NormalizeFieldProp(engine.PropImmutable, req.Type, req.Immutable),
		Indexed:         engine.NormalizeFieldProp(engine.PropIndexed, req.Type, req.Indexed),
		DefaultValue:    req.DefaultValue,
		Text:            req.Text,
		RichText:        req.RichText,
		EncryptedText:   req.EncryptedText,
		Decimal:         req.Decimal,
		Enum:            req.Enum,
		BasicValuesList: req.BasicValuesList,
		CreatedBy:       req.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch req.Type {
	case "reference":
		if req.ReferenceIID == "" {
			return nil, engine.NewValidationError("reference fields require a target model")
		}
		target, err := s.store.GetModelByIID(ctx, req.VersionID, req.ReferenceIID)
		if err != nil {
			if engine.IsNotFound(err) {
				return nil, engine.NewValidationError("referenced model %q does not exist", req.ReferenceIID)
			}
			return nil, err
		}
		if !target.IsTopLevel() {
			return nil, engine.NewValidationError("reference fields can only point at top level models")
		}
		field.Reference = &models.ReferenceProps{IID: req.ReferenceIID}
	case "basic-values-list":
		if req.BasicValuesList == nil || !isBasicValueKind(req.BasicValuesList.Kind) {
			return nil, engine.NewValidationError("basic values list fields require a valid element type")
		}
	case "enum":
		if req.Enum == nil || len(req.Enum.SelectList) == 0 {
			return nil, engine.NewValidationError("enum fields require a non-empty select list")
		}
	}

	var updated *models.Model
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if field.IsNested() {
			sub, err := s.createPairedSubModel(ctx, model, &field, req.ObjectTimestamps, eng, req.CreatedBy)
			if err != nil {
				return err
			}
			if req.Type == "object" {
				field.Object = &models.ObjectProps{IID: sub.IID}
			} else {
				field.ObjectList = &models.ObjectListProps{IID: sub.IID}
			}
		}
		if updated, err = s.store.PushFields(ctx, req.VersionID, req.ModelID, req.CreatedBy, field); err != nil {
			return err
		}
		if eng == engine.EngineMongoDB {
			if updated, err = s.syncLanguageField(ctx, req.VersionID, req.ModelID, eng, searchLanguage(&field), req.CreatedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("created field", "model", model.Name, "field", field.Name, "type", field.Type)
	notifyTypings(s.typings, s.logger, req.VersionID, req.CreatedBy)
	return updated, nil
}

func (s *FieldService) createPairedSubModel(ctx context.Context, parent *models.Model, field *models.Field,
	ts models.Timestamps, eng engine.Engine, createdBy string) (*models.Model, error) {
	kind := models.ModelKindSubObject
	if field.Type == "object-list" {
		kind = models.ModelKindSubList
	}
	now := time.Now()
	sub := &models.Model{
		ModelID:    helpers.GenerateUUID(),
		VersionID:  parent.VersionID,
		DatabaseID: parent.DatabaseID,
		IID:        helpers.GenerateSlug("mdl"),
		Name:       field.Name,
		Kind:       kind,
		ParentIID:  parent.IID,
		Timestamps: ts,
		Fields:     engine.DefaultFields(eng, ts, createdBy, kind),
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateModel(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

type UpdateFieldRequest struct {
	Name        *string
	Description *string

	Required  *bool
	Unique    *bool
	Immutable *bool
	Indexed   *bool

	DefaultValue *string

	Text            *models.TextProps
	RichText        *models.RichTextProps
	EncryptedText   *models.EncryptedTextProps
	Decimal         *models.DecimalProps
	Enum            *models.EnumProps
	BasicValuesList *models.BasicValuesListProps

	UpdatedBy string
}

func (r *UpdateFieldRequest) touchesMoreThanDescription() bool {
	return r.Name != nil || r.Required != nil || r.Unique != nil ||
		r.Immutable != nil || r.Indexed != nil || r.DefaultValue != nil ||
		r.Text != nil || r.RichText != nil || r.EncryptedText != nil ||
		r.Decimal != nil || r.Enum != nil || r.BasicValuesList != nil
}

// UpdateField updates a field in place. System managed fields accept a
// description change and nothing else. Renaming an object or object-list
// field renames its paired sub-model in the same session.
func (s *FieldService) UpdateField(ctx context.Context, versionID, modelID, fieldID string, req UpdateFieldRequest) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	db, err := s.dbStore.GetDatabaseByID(ctx, versionID, model.DatabaseID)
	if err != nil {
		return nil, err
	}
	eng := engine.Engine(db.Engine)

	field := model.FieldByID(fieldID)
	if field == nil {
		return nil, engine.NewNotFoundError("field %q not found in model %q", fieldID, model.Name)
	}
	if field.Creator == models.FieldCreatorSystem && req.touchesMoreThanDescription() {
		return nil, engine.NewNotAllowedError("field %q is managed by the platform; only its description can be changed", field.Name)
	}

	next := field.Clone()
	if req.Name != nil && *req.Name != field.Name {
		if model.FieldByName(*req.Name) != nil {
			return nil, engine.NewValidationError("a field named %q already exists in model %q", *req.Name, model.Name)
		}
		next.Name = *req.Name
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.Required != nil {
		next.Required = *req.Required
	}
	if req.Unique != nil {
		next.Unique = engine.NormalizeFieldProp(engine.PropUnique, next.Type, req.Unique)
	}
	if req.Immutable != nil {
		next.Immutable = engine.NormalizeFieldProp(engine.PropImmutable, next.Type, req.Immutable)
	}
	if req.Indexed != nil {
		next.Indexed = engine.NormalizeFieldProp(engine.PropIndexed, next.Type, req.Indexed)
	}
	if req.DefaultValue != nil {
		next.DefaultValue = *req.DefaultValue
	}
	if req.Text != nil {
		next.Text = req.Text
	}
	if req.RichText != nil {
		next.RichText = req.RichText
	}
	if req.EncryptedText != nil {
		next.EncryptedText = req.EncryptedText
	}
	if req.Decimal != nil {
		next.Decimal = req.Decimal
	}
	if req.Enum != nil {
		if len(req.Enum.SelectList) == 0 {
			return nil, engine.NewValidationError("enum fields require a non-empty select list")
		}
		next.Enum = req.Enum
	}
	if req.BasicValuesList != nil {
		if !isBasicValueKind(req.BasicValuesList.Kind) {
			return nil, engine.NewValidationError("basic values list fields require a valid element type")
		}
		next.BasicValuesList = req.BasicValuesList
	}
	if wantsSearchable(next.Text, next.RichText) && !engine.SearchableFieldType(next.Type) {
		return nil, engine.NewValidationError("field type %q cannot be marked searchable", next.Type)
	}
	next.UpdatedBy = req.UpdatedBy
	next.UpdatedAt = time.Now()

	var updated *models.Model
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if next.IsNested() && next.Name != field.Name {
			if iid := next.PairedModelIID(); iid != "" {
				if err := s.store.SetModelNameByIID(ctx, versionID, iid, next.Name, req.UpdatedBy); err != nil {
					return err
				}
			}
		}
		if updated, err = s.store.ReplaceField(ctx, versionID, modelID, *next, req.UpdatedBy); err != nil {
			return err
		}
		if eng == engine.EngineMongoDB {
			if updated, err = s.syncLanguageField(ctx, versionID, modelID, eng, searchLanguage(next), req.UpdatedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyTypings(s.typings, s.logger, versionID, req.UpdatedBy)
	return updated, nil
}

// DeleteField removes a single user created field. Deleting a system
// managed field is not allowed.
func (s *FieldService) DeleteField(ctx context.Context, versionID, modelID, fieldID, deletedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	field := model.FieldByID(fieldID)
	if field == nil {
		return nil, engine.NewNotFoundError("field %q not found in model %q", fieldID, model.Name)
	}
	if field.Creator != models.FieldCreatorUser {
		return nil, engine.NewNotAllowedError("field %q is managed by the platform and cannot be deleted", field.Name)
	}
	return s.deleteFields(ctx, model, []models.Field{*field}, deletedBy)
}

// DeleteFields removes a batch of fields from a model. System managed
// fields in the batch are skipped.
func (s *FieldService) DeleteFields(ctx context.Context, versionID, modelID string, fieldIDs []string, deletedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	var doomed []models.Field
	for _, id := range fieldIDs {
		f := model.FieldByID(id)
		if f == nil || f.Creator != models.FieldCreatorUser {
			continue
		}
		doomed = append(doomed, *f)
	}
	if len(doomed) == 0 {
		return nil, engine.NewNotFoundError("no deletable fields found in model %q", model.Name)
	}
	return s.deleteFields(ctx, model, doomed, deletedBy)
}

// deleteFields removes the given fields and everything that hangs off
// them: paired sub-models, their nested descendants, and any reference
// fields elsewhere that pointed into the removed subtree.
func (s *FieldService) deleteFields(ctx context.Context, model *models.Model, doomed []models.Field, deletedBy string) (*models.Model, error) {
	db, err := s.dbStore.GetDatabaseByID(ctx, model.VersionID, model.DatabaseID)
	if err != nil {
		return nil, err
	}
	eng := engine.Engine(db.Engine)

	ids := make([]string, len(doomed))
	for i := range doomed {
		ids[i] = doomed[i].FieldID
	}

	plan, err := s.planner.PlanFieldDeletion(ctx, model, doomed)
	if err != nil {
		return nil, err
	}

	var updated *models.Model
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.planner.Apply(ctx, plan, deletedBy); err != nil {
			return err
		}
		if updated, err = s.store.PullFieldsByID(ctx, model.VersionID, model.ModelID, ids, deletedBy); err != nil {
			return err
		}
		if eng == engine.EngineMongoDB {
			if updated, err = s.syncLanguageField(ctx, model.VersionID, model.ModelID, eng, defaultSearchLanguage, deletedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range doomed {
		s.logger.Infow("deleted field", "model", model.Name, "field", doomed[i].Name)
	}
	notifyTypings(s.typings, s.logger, model.VersionID, deletedBy)
	return updated, nil
}

// FieldOrder assigns a new display order to one field.
type FieldOrder struct {
	FieldID string
	Order   int
}

// ReorderFields applies a batch of display order changes in one session.
func (s *FieldService) ReorderFields(ctx context.Context, versionID, modelID string, orders []FieldOrder, updatedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if model.FieldByID(o.FieldID) == nil {
			return nil, engine.NewNotFoundError("field %q not found in model %q", o.FieldID, model.Name)
		}
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		for _, o := range orders {
			if err := s.store.SetFieldOrder(ctx, versionID, modelID, o.FieldID, o.Order, updatedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetModelByID(ctx, versionID, modelID)
}

type AddValidationRuleRequest struct {
	Kind         string
	Rule         string
	ErrorMessage string
	CreatedBy    string
}

// AddValidationRule attaches a rule to a user created scalar field.
func (s *FieldService) AddValidationRule(ctx context.Context, versionID, modelID, fieldID string, req AddValidationRuleRequest) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	field := model.FieldByID(fieldID)
	if field == nil {
		return nil, engine.NewNotFoundError("field %q not found in model %q", fieldID, model.Name)
	}
	if field.IsNested() {
		return nil, engine.NewNotAllowedError("validation rules cannot be attached to object or object list fields")
	}
	if field.Creator == models.FieldCreatorSystem {
		return nil, engine.NewNotAllowedError("validation rules cannot be attached to platform managed field %q", field.Name)
	}
	if req.Kind != models.RuleKindExpression && req.Kind != models.RuleKindSQL {
		return nil, engine.NewValidationError("unknown validation rule kind %q", req.Kind)
	}
	if req.Rule == "" {
		return nil, engine.NewValidationError("validation rules require a rule expression")
	}

	next := field.Clone()
	next.ValidationRules = append(next.ValidationRules, models.ValidationRule{
		RuleID:       helpers.GenerateUUID(),
		IID:          helpers.GenerateSlug("rul"),
		Kind:         req.Kind,
		Rule:         req.Rule,
		ErrorMessage: req.ErrorMessage,
		Order:        engine.NewValidationRuleOrderNumber(field),
		CreatedBy:    req.CreatedBy,
		CreatedAt:    time.Now(),
	})
	next.UpdatedBy = req.CreatedBy
	next.UpdatedAt = time.Now()

	updated, err := s.store.ReplaceField(ctx, versionID, modelID, *next, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type UpdateValidationRuleRequest struct {
	Rule         *string
	ErrorMessage *string
	Order        *int
	UpdatedBy    string
}

func (s *FieldService) UpdateValidationRule(ctx context.Context, versionID, modelID, fieldID, ruleID string, req UpdateValidationRuleRequest) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	field := model.FieldByID(fieldID)
	if field == nil {
		return nil, engine.NewNotFoundError("field %q not found in model %q", fieldID, model.Name)
	}
	next := field.Clone()
	rule := next.RuleByID(ruleID)
	if rule == nil {
		return nil, engine.NewNotFoundError("validation rule %q not found on field %q", ruleID, field.Name)
	}
	if req.Rule != nil {
		if *req.Rule == "" {
			return nil, engine.NewValidationError("validation rules require a rule expression")
		}
		rule.Rule = *req.Rule
	}
	if req.ErrorMessage != nil {
		rule.ErrorMessage = *req.ErrorMessage
	}
	if req.Order != nil {
		rule.Order = *req.Order
	}
	next.UpdatedBy = req.UpdatedBy
	next.UpdatedAt = time.Now()

	return s.store.ReplaceField(ctx, versionID, modelID, *next, req.UpdatedBy)
}

func (s *FieldService) DeleteValidationRule(ctx context.Context, versionID, modelID, fieldID, ruleID, deletedBy string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}
	field := model.FieldByID(fieldID)
	if field == nil {
		return nil, engine.NewNotFoundError("field %q not found in model %q", fieldID, model.Name)
	}
	if field.RuleByID(ruleID) == nil {
		return nil, engine.NewNotFoundError("validation rule %q not found on field %q", ruleID, field.Name)
	}

	next := field.Clone()
	kept := next.ValidationRules[:0]
	for i := range next.ValidationRules {
		if next.ValidationRules[i].RuleID != ruleID {
			kept = append(kept, next.ValidationRules[i])
		}
	}
	next.ValidationRules = kept
	next.UpdatedBy = deletedBy
	next.UpdatedAt = time.Now()

	return s.store.ReplaceField(ctx, versionID, modelID, *next, deletedBy)
}

// syncLanguageField keeps the full-text language field of a MongoDB model
// in step with its searchable fields. When at least one text or rich text
// field is searchable a system managed language field must exist; when
// none remains the system managed one is removed again. A user created
// field squatting on the reserved name blocks searchable fields entirely.
func (s *FieldService) syncLanguageField(ctx context.Context, versionID, modelID string, eng engine.Engine, language, actor string) (*models.Model, error) {
	model, err := s.store.GetModelByID(ctx, versionID, modelID)
	if err != nil {
		return nil, err
	}

	needed := false
	for i := range model.Fields {
		if fieldIsSearchable(&model.Fields[i]) {
			needed = true
			break
		}
	}
	existing := model.FieldByName(languageFieldName)

	switch {
	case needed && existing == nil:
		if language == "" {
			language = defaultSearchLanguage
		}
		now := time.Now()
		lang := models.Field{
			FieldID:      helpers.GenerateUUID(),
			IID:          helpers.GenerateSlug("fld"),
			Name:         languageFieldName,
			Type:         "text",
			DBType:       engine.PhysicalType(eng, "text"),
			Creator:      models.FieldCreatorSystem,
			Order:        engine.NewFieldOrderNumber(model),
			Required:     true,
			Immutable:    true,
			Indexed:      true,
			DefaultValue: language,
			Text:         &models.TextProps{Searchable: false, MaxLength: 32},
			CreatedBy:    actor,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.store.PushFields(ctx, versionID, modelID, actor, lang)
	case needed && existing.Creator == models.FieldCreatorUser:
		return nil, engine.NewNotAllowedError("model %q has a user defined field named %q which conflicts with full-text search support", model.Name, languageFieldName)
	case !needed && existing != nil && existing.Creator == models.FieldCreatorSystem:
		return s.store.PullFieldsByID(ctx, versionID, modelID, []string{existing.FieldID}, actor)
	}
	return model, nil
}

func fieldIsSearchable(f *models.Field) bool {
	if !engine.SearchableFieldType(f.Type) {
		return false
	}
	return f.Text != nil && f.Text.Searchable || f.RichText != nil && f.RichText.Searchable
}

func wantsSearchable(text *models.TextProps, rich *models.RichTextProps) bool {
	return text != nil && text.Searchable || rich != nil && rich.Searchable
}

func searchLanguage(f *models.Field) string {
	switch {
	case f.Text != nil && f.Text.Language != "":
		return f.Text.Language
	case f.RichText != nil && f.RichText.Language != "":
		return f.RichText.Language
	}
	return defaultSearchLanguage
}

func isBasicValueKind(kind string) bool {
	for _, k := range engine.BasicValueKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func boolValue(p *bool) bool {
	return p != nil && *p
}
