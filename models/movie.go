package models

import "time"

// Movie represents a listed movie
type Movie struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Genre     string    `json:"genre" db:"genre"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Movie model
func (Movie) TableName() string {
	return "movies"
}

// NewMovie creates a new Movie instance. The ID is assigned by the repository.
func NewMovie(title, genre string) *Movie {
	now := time.Now()
	return &Movie{
		Title:     title,
		Genre:     genre,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
