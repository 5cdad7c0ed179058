package engine

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"modelforge/src/models"
)

// ModelMetaUpdate carries the optional top level model properties an update
// may change. Nil pointers leave the stored value untouched.
type ModelMetaUpdate struct {
	Name        *string
	Description *string
	UpdatedBy   string
}

// ModelStore is the repository for model entities. Implementations must hand
// out copies; callers may mutate returned models freely.
//
// WithTransaction opens one transactional session; the context passed to fn
// carries the session and must be threaded through every store call made
// inside it, making the unit of atomicity explicit at each call site. When
// fn returns an error every write of the session is rolled back.
type ModelStore interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	GetModelByID(ctx context.Context, versionID, modelID string) (*models.Model, error)
	GetModelByIID(ctx context.Context, versionID, iid string) (*models.Model, error)
	GetModelsByIDs(ctx context.Context, versionID string, modelIDs []string) ([]models.Model, error)
	GetModelsByDatabase(ctx context.Context, versionID, databaseID string) ([]models.Model, error)
	GetTopLevelModels(ctx context.Context, versionID, databaseID string) ([]models.Model, error)

	// GetReferencingModels returns every model in the version holding at
	// least one reference field pointing at one of the target iids. Returned
	// models carry their full field list; trimming to the offending
	// reference fields is the resolver's job.
	GetReferencingModels(ctx context.Context, versionID string, targetIIDs []string) ([]models.Model, error)

	CreateModel(ctx context.Context, model *models.Model) error
	UpdateModelMeta(ctx context.Context, versionID, modelID string, meta ModelMetaUpdate) (*models.Model, error)
	SetModelNameByIID(ctx context.Context, versionID, iid, name, updatedBy string) error
	SetModelTimestamps(ctx context.Context, versionID, modelID string, ts models.Timestamps, updatedBy string) error

	PushFields(ctx context.Context, versionID, modelID, updatedBy string, fields ...models.Field) (*models.Model, error)
	PullFieldsByID(ctx context.Context, versionID, modelID string, fieldIDs []string, updatedBy string) (*models.Model, error)
	ReplaceField(ctx context.Context, versionID, modelID string, field models.Field, updatedBy string) (*models.Model, error)
	SetFieldOrder(ctx context.Context, versionID, modelID, fieldID string, order int, updatedBy string) error

	DeleteModelsByIDs(ctx context.Context, versionID string, modelIDs []string) (int64, error)
}

// ModelStorageEngine is the MongoDB backed ModelStore.
type ModelStorageEngine struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.SugaredLogger
}

// NewModelStore creates a ModelStorageEngine over the "models" collection of
// the given database.
func NewModelStore(client *mongo.Client, database string, logger *zap.SugaredLogger) *ModelStorageEngine {
	return &ModelStorageEngine{
		client: client,
		coll:   client.Database(database).Collection("models"),
		logger: logger,
	}
}

// WithTransaction runs fn inside one mongo session. Errors fn raised pass
// through unchanged so callers keep their taxonomy; session level failures
// surface as TransactionError.
func (s *ModelStorageEngine) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return NewTransactionError(err, "failed to start store session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		var de *DesignError
		if errors.As(err, &de) {
			return err
		}
		return NewTransactionError(err, "store transaction failed")
	}
	return nil
}

// Generic operations over the models collection. The domain methods below
// are thin compositions of these.

func (s *ModelStorageEngine) findOne(ctx context.Context, filter bson.M) (*models.Model, error) {
	var model models.Model
	err := s.coll.FindOne(ctx, filter).Decode(&model)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("model not found")
		}
		return nil, NewTransactionError(err, "failed to query model")
	}
	return &model, nil
}

func (s *ModelStorageEngine) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Model, error) {
	cursor, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, NewTransactionError(err, "failed to query models")
	}
	var result []models.Model
	if err := cursor.All(ctx, &result); err != nil {
		return nil, NewTransactionError(err, "failed to decode models")
	}
	return result, nil
}

func (s *ModelStorageEngine) insert(ctx context.Context, model *models.Model) error {
	if _, err := s.coll.InsertOne(ctx, model); err != nil {
		return NewTransactionError(err, "failed to insert model %q", model.Name)
	}
	return nil
}

func (s *ModelStorageEngine) updateOneByFilter(ctx context.Context, filter, set bson.M) (*models.Model, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Model
	err := s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("model not found")
		}
		return nil, NewTransactionError(err, "failed to update model")
	}
	return &updated, nil
}

func (s *ModelStorageEngine) pullFromArrayByFilter(ctx context.Context, filter bson.M, arrayPath string, match bson.M, set bson.M) (*models.Model, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$pull": bson.M{arrayPath: match}}
	if len(set) > 0 {
		update["$set"] = set
	}
	var updated models.Model
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("model not found")
		}
		return nil, NewTransactionError(err, "failed to pull from %s", arrayPath)
	}
	return &updated, nil
}

func (s *ModelStorageEngine) pushToArrayByID(ctx context.Context, filter bson.M, arrayPath string, items any, set bson.M) (*models.Model, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$push": bson.M{arrayPath: bson.M{"$each": items}}}
	if len(set) > 0 {
		update["$set"] = set
	}
	var updated models.Model
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("model not found")
		}
		return nil, NewTransactionError(err, "failed to push to %s", arrayPath)
	}
	return &updated, nil
}

func (s *ModelStorageEngine) deleteManyByFilter(ctx context.Context, filter bson.M) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, NewTransactionError(err, "failed to delete models")
	}
	return result.DeletedCount, nil
}

func (s *ModelStorageEngine) GetModelByID(ctx context.Context, versionID, modelID string) (*models.Model, error) {
	return s.findOne(ctx, bson.M{"_id": modelID, "versionId": versionID})
}

func (s *ModelStorageEngine) GetModelByIID(ctx context.Context, versionID, iid string) (*models.Model, error) {
	return s.findOne(ctx, bson.M{"iid": iid, "versionId": versionID})
}

func (s *ModelStorageEngine) GetModelsByIDs(ctx context.Context, versionID string, modelIDs []string) ([]models.Model, error) {
	return s.find(ctx, bson.M{"_id": bson.M{"$in": modelIDs}, "versionId": versionID})
}

func (s *ModelStorageEngine) GetModelsByDatabase(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	return s.find(ctx, bson.M{"versionId": versionID, "dbId": databaseID})
}

func (s *ModelStorageEngine) GetTopLevelModels(ctx context.Context, versionID, databaseID string) ([]models.Model, error) {
	filter := bson.M{"versionId": versionID, "dbId": databaseID, "kind": models.ModelKindModel}
	return s.find(ctx, filter, options.Find().SetSort(bson.M{"name": 1}))
}

func (s *ModelStorageEngine) GetReferencingModels(ctx context.Context, versionID string, targetIIDs []string) ([]models.Model, error) {
	return s.find(ctx, bson.M{
		"versionId":            versionID,
		"fields.type":          "reference",
		"fields.reference.iid": bson.M{"$in": targetIIDs},
	})
}

func (s *ModelStorageEngine) CreateModel(ctx context.Context, model *models.Model) error {
	return s.insert(ctx, model)
}

func (s *ModelStorageEngine) UpdateModelMeta(ctx context.Context, versionID, modelID string, meta ModelMetaUpdate) (*models.Model, error) {
	set := bson.M{"updatedBy": meta.UpdatedBy, "updatedAt": time.Now()}
	if meta.Name != nil {
		set["name"] = *meta.Name
	}
	if meta.Description != nil {
		set["description"] = *meta.Description
	}
	return s.updateOneByFilter(ctx, bson.M{"_id": modelID, "versionId": versionID}, set)
}

func (s *ModelStorageEngine) SetModelNameByIID(ctx context.Context, versionID, iid, name, updatedBy string) error {
	set := bson.M{"name": name, "updatedBy": updatedBy, "updatedAt": time.Now()}
	_, err := s.updateOneByFilter(ctx, bson.M{"iid": iid, "versionId": versionID}, set)
	return err
}

func (s *ModelStorageEngine) SetModelTimestamps(ctx context.Context, versionID, modelID string, ts models.Timestamps, updatedBy string) error {
	set := bson.M{"timestamps": ts, "updatedBy": updatedBy, "updatedAt": time.Now()}
	_, err := s.updateOneByFilter(ctx, bson.M{"_id": modelID, "versionId": versionID}, set)
	return err
}

func (s *ModelStorageEngine) PushFields(ctx context.Context, versionID, modelID, updatedBy string, fields ...models.Field) (*models.Model, error) {
	filter := bson.M{"_id": modelID, "versionId": versionID}
	set := bson.M{"updatedBy": updatedBy, "updatedAt": time.Now()}
	return s.pushToArrayByID(ctx, filter, "fields", fields, set)
}

func (s *ModelStorageEngine) PullFieldsByID(ctx context.Context, versionID, modelID string, fieldIDs []string, updatedBy string) (*models.Model, error) {
	filter := bson.M{"_id": modelID, "versionId": versionID}
	match := bson.M{"_id": bson.M{"$in": fieldIDs}}
	set := bson.M{"updatedBy": updatedBy, "updatedAt": time.Now()}
	return s.pullFromArrayByFilter(ctx, filter, "fields", match, set)
}

func (s *ModelStorageEngine) ReplaceField(ctx context.Context, versionID, modelID string, field models.Field, updatedBy string) (*models.Model, error) {
	filter := bson.M{"_id": modelID, "versionId": versionID, "fields._id": field.FieldID}
	set := bson.M{"fields.$": field, "updatedBy": updatedBy, "updatedAt": time.Now()}
	return s.updateOneByFilter(ctx, filter, set)
}

func (s *ModelStorageEngine) SetFieldOrder(ctx context.Context, versionID, modelID, fieldID string, order int, updatedBy string) error {
	filter := bson.M{"_id": modelID, "versionId": versionID, "fields._id": fieldID}
	set := bson.M{"fields.$.order": order, "updatedBy": updatedBy, "updatedAt": time.Now()}
	_, err := s.updateOneByFilter(ctx, filter, set)
	return err
}

func (s *ModelStorageEngine) DeleteModelsByIDs(ctx context.Context, versionID string, modelIDs []string) (int64, error) {
	return s.deleteManyByFilter(ctx, bson.M{"_id": bson.M{"$in": modelIDs}, "versionId": versionID})
}
