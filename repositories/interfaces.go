package repositories

import (
	"context"
	"errors"

	"github.com/upb/movie-auth-gateway/models"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user credential lookups
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByEmail retrieves a user by exact email. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Count returns the number of stored users
	Count(ctx context.Context) (int, error)
}

// MovieRepository handles movie data operations
type MovieRepository interface {
	// List retrieves all movies ordered by ID
	List(ctx context.Context) ([]*models.Movie, error)

	// GetByID retrieves a movie by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.Movie, error)

	// Create stores a new movie and assigns its ID
	Create(ctx context.Context, movie *models.Movie) error

	// Update replaces title and genre. Returns ErrNotFound when absent.
	Update(ctx context.Context, movie *models.Movie) error

	// Delete deletes a movie. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored movies
	Count(ctx context.Context) (int, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users        UserRepository
	Movies       MovieRepository
	Transactions TransactionManager
	Health       HealthChecker
}
