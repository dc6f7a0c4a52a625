// Package store defines the TrialStore interface for keeping many named
// trial sets side by side.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/trials"
)

// ErrNotFound is returned when no trial set matches an id or name.
var ErrNotFound = errors.New("trial set not found")

// TrialSetInfo describes a stored trial set without its trials.
type TrialSetInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        constants.Kind `json:"kind"`
	TrialCount  int            `json:"trial_count"`
	ConfigCount int            `json:"config_count"`
	ContentHash string         `json:"content_hash"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TrialStore defines the interface for storing and retrieving trial sets.
// ref arguments accept either the set's id or its name.
type TrialStore interface {
	// Save stores t under name. Saving over an existing name replaces its
	// trials and keeps its id.
	Save(ctx context.Context, name string, t trials.Trials) (*TrialSetInfo, error)
	Load(ctx context.Context, ref string) (trials.Trials, error)
	Info(ctx context.Context, ref string) (*TrialSetInfo, error)
	List(ctx context.Context) ([]TrialSetInfo, error)
	Delete(ctx context.Context, ref string) error
	Close() error
}
