// Package datastore archives config revisions in SQLite or MySQL.
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// ErrRevisionNotFound is wrapped by errors returned for unknown revision ids.
var ErrRevisionNotFound = errors.NewStd("revision not found")

// Interface is the revision archive.
type Interface interface {
	Open() error
	Close() error
	SaveRevision(ctx context.Context, rev *Revision) (*Revision, error)
	ListRevisions(ctx context.Context, limit int) ([]Revision, error)
	GetRevision(ctx context.Context, id uint) (*Revision, error)
	DeleteRevision(ctx context.Context, id uint) error
	LatestRevision(ctx context.Context) (*Revision, error)
}

// DataStore implements the queries shared by all database backends.
type DataStore struct {
	DB       *gorm.DB
	Settings *conf.Settings
}

// New returns the store selected by settings.Datastore.Type. The store is not opened.
func New(settings *conf.Settings) (Interface, error) {
	switch strings.ToLower(settings.Datastore.Type) {
	case "sqlite", "":
		return &SQLiteStore{DataStore: DataStore{Settings: settings}}, nil
	case "mysql":
		return &MySQLStore{DataStore: DataStore{Settings: settings}}, nil
	}
	return nil, errors.Newf("unsupported datastore type %q", settings.Datastore.Type).
		Category(errors.CategoryConfiguration).
		Build()
}

// SaveRevision stores rev unless it is identical to the latest revision, in which case
// the latest revision is returned unchanged. Older revisions beyond the retention limit
// are pruned.
func (ds *DataStore) SaveRevision(ctx context.Context, rev *Revision) (*Revision, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	latest, err := ds.LatestRevision(ctx)
	switch {
	case err == nil && latest.Checksum == rev.Checksum && latest.Source == rev.Source:
		GetLogger().Debug("revision unchanged, not stored",
			logger.Int("id", int(latest.ID)),
			logger.String("source", string(rev.Source)))
		return latest, nil
	case err != nil && !errors.Is(err, ErrRevisionNotFound):
		return nil, err
	}

	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now()
	}
	if err := ds.DB.WithContext(ctx).Create(rev).Error; err != nil {
		return nil, dbError(err, "save_revision")
	}

	GetLogger().Info("revision stored",
		logger.Int("id", int(rev.ID)),
		logger.String("source", string(rev.Source)),
		logger.String("checksum", rev.Checksum))

	if retain := ds.Settings.Datastore.Retain; retain > 0 {
		if err := ds.prune(ctx, retain); err != nil {
			GetLogger().Warn("failed to prune revisions", logger.Error(err))
		}
	}
	return rev, nil
}

// ListRevisions returns the newest revisions first, without their content. A limit of
// zero or less returns all revisions.
func (ds *DataStore) ListRevisions(ctx context.Context, limit int) ([]Revision, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	query := ds.DB.WithContext(ctx).Omit("content").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var revisions []Revision
	if err := query.Find(&revisions).Error; err != nil {
		return nil, dbError(err, "list_revisions")
	}
	return revisions, nil
}

// GetRevision returns the revision with the given id, including its content.
func (ds *DataStore) GetRevision(ctx context.Context, id uint) (*Revision, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	var rev Revision
	if err := ds.DB.WithContext(ctx).First(&rev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, revisionNotFound(id)
		}
		return nil, dbError(err, "get_revision")
	}
	return &rev, nil
}

// LatestRevision returns the most recently stored revision.
func (ds *DataStore) LatestRevision(ctx context.Context) (*Revision, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	var rev Revision
	if err := ds.DB.WithContext(ctx).Order("id DESC").First(&rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, revisionNotFound(0)
		}
		return nil, dbError(err, "latest_revision")
	}
	return &rev, nil
}

// DeleteRevision removes the revision with the given id.
func (ds *DataStore) DeleteRevision(ctx context.Context, id uint) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}

	result := ds.DB.WithContext(ctx).Delete(&Revision{}, id)
	if result.Error != nil {
		return dbError(result.Error, "delete_revision")
	}
	if result.RowsAffected == 0 {
		return revisionNotFound(id)
	}
	return nil
}

// prune keeps the newest keep revisions.
func (ds *DataStore) prune(ctx context.Context, keep int) error {
	var ids []uint
	if err := ds.DB.WithContext(ctx).Model(&Revision{}).
		Order("id DESC").Pluck("id", &ids).Error; err != nil {
		return dbError(err, "prune_revisions")
	}
	if len(ids) <= keep {
		return nil
	}
	ids = ids[keep:]
	if err := ds.DB.WithContext(ctx).Delete(&Revision{}, ids).Error; err != nil {
		return dbError(err, "prune_revisions")
	}
	GetLogger().Debug("pruned revisions", logger.Int("count", len(ids)))
	return nil
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return errors.NewStd("database connection is not initialized")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

func (ds *DataStore) checkOpen() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// performAutoMigration creates or updates the revision table.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Revision{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)).
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func revisionNotFound(id uint) error {
	return errors.New(fmt.Errorf("%w: %d", ErrRevisionNotFound, id)).
		Category(errors.CategoryNotFound).
		Context("revision_id", id).
		Build()
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
