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

// DatabaseMetaUpdate carries the optional database properties an update may
// change. The engine kind is deliberately absent: it is immutable after
// creation.
type DatabaseMetaUpdate struct {
	Name        *string
	Description *string
	UpdatedBy   string
}

// DatabaseStore is the repository for logical database entities.
type DatabaseStore interface {
	GetDatabaseByID(ctx context.Context, versionID, databaseID string) (*models.Database, error)
	GetDatabasesByVersion(ctx context.Context, versionID string) ([]models.Database, error)
	CreateDatabase(ctx context.Context, db *models.Database) error
	UpdateDatabaseMeta(ctx context.Context, versionID, databaseID string, meta DatabaseMetaUpdate) (*models.Database, error)
	DeleteDatabase(ctx context.Context, versionID, databaseID string) error
}

// DatabaseStorageEngine is the MongoDB backed DatabaseStore.
type DatabaseStorageEngine struct {
	coll   *mongo.Collection
	logger *zap.SugaredLogger
}

// NewDatabaseStore creates a DatabaseStorageEngine over the "databases"
// collection of the given database.
func NewDatabaseStore(client *mongo.Client, database string, logger *zap.SugaredLogger) *DatabaseStorageEngine {
	return &DatabaseStorageEngine{
		coll:   client.Database(database).Collection("databases"),
		logger: logger,
	}
}

func (s *DatabaseStorageEngine) GetDatabaseByID(ctx context.Context, versionID, databaseID string) (*models.Database, error) {
	var db models.Database
	err := s.coll.FindOne(ctx, bson.M{"_id": databaseID, "versionId": versionID}).Decode(&db)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("database not found")
		}
		return nil, NewTransactionError(err, "failed to query database")
	}
	return &db, nil
}

func (s *DatabaseStorageEngine) GetDatabasesByVersion(ctx context.Context, versionID string) ([]models.Database, error) {
	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := s.coll.Find(ctx, bson.M{"versionId": versionID}, opts)
	if err != nil {
		return nil, NewTransactionError(err, "failed to query databases")
	}
	var result []models.Database
	if err := cursor.All(ctx, &result); err != nil {
		return nil, NewTransactionError(err, "failed to decode databases")
	}
	return result, nil
}

func (s *DatabaseStorageEngine) CreateDatabase(ctx context.Context, db *models.Database) error {
	if _, err := s.coll.InsertOne(ctx, db); err != nil {
		return NewTransactionError(err, "failed to insert database %q", db.Name)
	}
	return nil
}

func (s *DatabaseStorageEngine) UpdateDatabaseMeta(ctx context.Context, versionID, databaseID string, meta DatabaseMetaUpdate) (*models.Database, error) {
	set := bson.M{"updatedBy": meta.UpdatedBy, "updatedAt": time.Now()}
	if meta.Name != nil {
		set["name"] = *meta.Name
	}
	if meta.Description != nil {
		set["description"] = *meta.Description
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": databaseID, "versionId": versionID}
	var updated models.Database
	err := s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("database not found")
		}
		return nil, NewTransactionError(err, "failed to update database")
	}
	return &updated, nil
}

func (s *DatabaseStorageEngine) DeleteDatabase(ctx context.Context, versionID, databaseID string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": databaseID, "versionId": versionID})
	if err != nil {
		return NewTransactionError(err, "failed to delete database")
	}
	if result.DeletedCount == 0 {
		return NewNotFoundError("database not found")
	}
	return nil
}
