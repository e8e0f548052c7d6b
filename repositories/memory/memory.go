// Package memory provides process-local repositories used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/repositories"
)

// NewRepositories creates empty in-memory repositories
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:        NewUserRepository(),
		Movies:       NewMovieRepository(),
		Transactions: TransactionManager{},
		Health:       healthChecker{},
	}
}

// UserRepository stores users keyed by exact email
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*models.User),
	}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return fmt.Errorf("user already exists: %s", user.Email)
	}
	stored := *user
	r.users[user.Email] = &stored
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	found := *user
	return &found, nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

// MovieRepository stores movies with sequential IDs
type MovieRepository struct {
	mu     sync.RWMutex
	movies map[int64]*models.Movie
	nextID int64
}

// NewMovieRepository creates an empty movie repository
func NewMovieRepository() *MovieRepository {
	return &MovieRepository{
		movies: make(map[int64]*models.Movie),
		nextID: 1,
	}
}

func (r *MovieRepository) List(_ context.Context) ([]*models.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	movies := make([]*models.Movie, 0, len(r.movies))
	for _, movie := range r.movies {
		m := *movie
		movies = append(movies, &m)
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID < movies[j].ID })
	return movies, nil
}

func (r *MovieRepository) GetByID(_ context.Context, id int64) (*models.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	movie, ok := r.movies[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	m := *movie
	return &m, nil
}

func (r *MovieRepository) Create(_ context.Context, movie *models.Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	movie.ID = r.nextID
	r.nextID++
	stored := *movie
	r.movies[movie.ID] = &stored
	return nil
}

func (r *MovieRepository) Update(_ context.Context, movie *models.Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.movies[movie.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.Title = movie.Title
	existing.Genre = movie.Genre
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *MovieRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.movies[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.movies, id)
	return nil
}

func (r *MovieRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.movies), nil
}

// TransactionManager runs functions directly; each repository call is atomic on its own.
type TransactionManager struct{}

func (TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return transaction{ctx: ctx}, nil
}

func (tm TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := tm.Begin(ctx)
	return fn(ctx, tx)
}

type transaction struct {
	ctx context.Context
}

func (transaction) Commit() error              { return nil }
func (transaction) Rollback() error            { return nil }
func (t transaction) Context() context.Context { return t.ctx }

type healthChecker struct{}

func (healthChecker) HealthCheck(context.Context) error { return nil }
