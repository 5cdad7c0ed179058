package directors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"modelforge/src/engine"
	"modelforge/src/realtime"
	"modelforge/src/typings"
)

// TypingsService projects a version's model forest into generated type
// descriptors and publishes them to the notification channel. It is read
// only and safe to run concurrently with mutations; consumers tolerate the
// brief staleness window between a commit and the next refresh.
type TypingsService struct {
	dbStore    engine.DatabaseStore
	modelStore engine.ModelStore
	dispatcher realtime.Dispatcher
	logger     *zap.SugaredLogger
}

func NewTypingsService(dbStore engine.DatabaseStore, modelStore engine.ModelStore,
	dispatcher realtime.Dispatcher,
	logger *zap.SugaredLogger) *TypingsService {
	return &TypingsService{
		dbStore:    dbStore,
		modelStore: modelStore,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// VersionTypings loads every database and model of the version and returns
// the generated artifacts as a map of artifact path to source text.
func (s *TypingsService) VersionTypings(ctx context.Context, versionID string) (map[string]string, error) {
	dbs, err := s.dbStore.GetDatabasesByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	for i := range dbs {
		list, err := s.modelStore.GetModelsByDatabase(ctx, versionID, dbs[i].DatabaseID)
		if err != nil {
			return nil, err
		}
		dbs[i].Models = list
	}
	return typings.ForVersion(dbs), nil
}

// Refresh regenerates the version typings and pushes them to the
// dispatcher.
func (s *TypingsService) Refresh(ctx context.Context, versionID, actor string) error {
	artifacts, err := s.VersionTypings(ctx, versionID)
	if err != nil {
		return err
	}

	s.dispatcher.Push(realtime.Message{
		VersionID:   versionID,
		Action:      "update",
		Object:      "version.typings",
		Description: "Typings updated",
		Timestamp:   time.Now(),
		Data:        artifacts,
	})
	s.logger.Debugw("typings refreshed", "versionId", versionID, "actor", actor)
	return nil
}

// notifyTypings re-projects a version's typings in the background after a
// committed structural change. A nil service disables notifications.
func notifyTypings(s *TypingsService, logger *zap.SugaredLogger, versionID, actor string) {
	if s == nil {
		return
	}
	go func() {
		if err := s.Refresh(context.Background(), versionID, actor); err != nil {
			logger.Warnw("typings refresh failed", "versionId", versionID, "error", err)
		}
	}()
}
