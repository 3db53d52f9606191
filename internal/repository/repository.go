package repository

import (
	"context"
	"time"

	"smokeplan/internal/domain"
)

// ProjectSummary is one row of the library listing
type ProjectSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Detectors   int       `json:"detectors"`
	Connections int       `json:"connections"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository defines the interface for project library access
type Repository interface {
	// SaveProject stores snap under id, replacing any previous contents.
	// An empty id creates a new project. The stored ID is returned.
	SaveProject(ctx context.Context, id string, snap *domain.Snapshot) (string, error)

	// LoadProject restores a stored project as a live scene.
	LoadProject(ctx context.Context, id string) (*domain.Scene, error)

	// ListProjects returns every project, most recently updated first.
	ListProjects(ctx context.Context) ([]ProjectSummary, error)

	// DeleteProject removes a project with its detectors and connections.
	DeleteProject(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}
