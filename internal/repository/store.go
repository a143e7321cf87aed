package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in lifecycle transactions.
type Store interface {
	Users() UserRepository
	Templates() TemplateRepository
	Projects() ProjectRepository
	Versions() VersionRepository
	Images() ImageRepository
	Activity() ActivityLogRepository
	Notifications() NotificationRepository
	// WithinTransaction runs fn against repositories bound to one database
	// transaction. Returning an error rolls everything back.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore constructs a Store over the given connection.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository                 { return NewUserRepository(s.db) }
func (s *gormStore) Templates() TemplateRepository         { return NewTemplateRepository(s.db) }
func (s *gormStore) Projects() ProjectRepository           { return NewProjectRepository(s.db) }
func (s *gormStore) Versions() VersionRepository           { return NewVersionRepository(s.db) }
func (s *gormStore) Images() ImageRepository               { return NewImageRepository(s.db) }
func (s *gormStore) Activity() ActivityLogRepository       { return NewActivityLogRepository(s.db) }
func (s *gormStore) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }

func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
