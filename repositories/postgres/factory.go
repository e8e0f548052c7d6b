package postgres

import (
	"context"

	"github.com/upb/movie-auth-gateway/config"
	"github.com/upb/movie-auth-gateway/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory connects to the database and creates a factory over it
func NewRepositoryFactory(cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// InitSchema creates the tables when missing
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return NewRepositories(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}

// NewRepositories creates repositories over an open connection pool
func NewRepositories(db *DB, logger *zap.Logger) *repositories.Repositories {
	return &repositories.Repositories{
		Users:        NewUserRepository(db, logger),
		Movies:       NewMovieRepository(db, logger),
		Transactions: NewTransactionManager(db, logger),
		Health:       db,
	}
}
