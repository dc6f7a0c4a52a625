// Package trialfile persists trial containers.
//
// Three layouts are supported:
//   - V1: a plain indented JSON document
//   - V2: a JSON header line followed by a gzip-compressed JSON payload,
//     with a SHA-256 checksum of the payload in the header
//   - Arrow: an Arrow IPC file with one row per trial
//
// Every layout stores the raw arrays and the configuration table. On load
// the container is rebuilt from the raw arrays and the recomputed table is
// compared with the stored one.
package trialfile

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/trials"
)

var (
	// ErrChecksum is returned when a V2 payload does not match its header.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknownFormat is returned when a file matches no known layout.
	ErrUnknownFormat = errors.New("unrecognized trial file format")
	// ErrConfigDrift is returned when a stored configuration table differs
	// from the one rebuilt from the stored arrays.
	ErrConfigDrift = errors.New("stored configurations differ from recomputed configurations")
)

// Record is the serialized form of a trial container.
type Record struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Kind        constants.Kind  `json:"kind"`
	StimulusSet [][]int         `json:"stimulus_set"`
	NReference  []int           `json:"n_reference"`
	NSelect     []int           `json:"n_select"`
	IsRanked    []bool          `json:"is_ranked"`
	GroupID     []int           `json:"group_id,omitempty"`
	SessionID   []int           `json:"session_id,omitempty"`
	Configs     []trials.Config `json:"configs"`
	ConfigIdx   []int           `json:"config_idx"`
}

// NewRecord captures t under a fresh id.
func NewRecord(t trials.Trials) *Record {
	r := &Record{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Kind:        t.Kind(),
		StimulusSet: t.StimulusSet(),
		NReference:  t.NReference(),
		NSelect:     t.NSelect(),
		IsRanked:    t.IsRanked(),
		Configs:     t.Configs(),
		ConfigIdx:   t.ConfigIdx(),
	}
	if t.Kind() == constants.KindObservations {
		r.GroupID = t.GroupID()
		r.SessionID = t.SessionID()
	}
	return r
}

// Trials rebuilds the container and checks the stored configuration table
// against the rebuilt one. A record without a stored table skips the check.
func (r *Record) Trials() (trials.Trials, error) {
	if !r.Kind.Valid() {
		return nil, fmt.Errorf("restoring trials: invalid kind %q", r.Kind)
	}
	opts := []trials.Option{
		trials.WithNReference(r.NReference...),
		trials.WithNSelect(r.NSelect...),
		trials.WithIsRanked(r.IsRanked...),
	}

	var (
		t   trials.Trials
		err error
	)
	switch r.Kind {
	case constants.KindDocket:
		t, err = newDocket(r.StimulusSet, opts)
	case constants.KindObservations:
		opts = append(opts,
			trials.WithGroupID(r.GroupID...),
			trials.WithSessionID(r.SessionID...))
		t, err = newObservations(r.StimulusSet, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("restoring trials: %w", err)
	}

	if r.Configs != nil || r.ConfigIdx != nil {
		if !slices.Equal(r.Configs, t.Configs()) || !slices.Equal(r.ConfigIdx, t.ConfigIdx()) {
			return nil, fmt.Errorf("restoring trials %s: %w", r.ID, ErrConfigDrift)
		}
	}
	return t, nil
}

func newDocket(stimulusSet [][]int, opts []trials.Option) (trials.Trials, error) {
	d, err := trials.NewDocket(stimulusSet, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newObservations(stimulusSet [][]int, opts []trials.Option) (trials.Trials, error) {
	o, err := trials.NewObservations(stimulusSet, opts...)
	if err != nil {
		return nil, err
	}
	return o, nil
}
