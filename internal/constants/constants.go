// Package constants provides named constants used throughout the psiz codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Stimulus set layout constants
const (
	// Sentinel marks an unused reference slot in a stimulus set row.
	// Every row is padded with Sentinel out to the container's width.
	Sentinel = -1

	// QueryColumn is the stimulus set column holding the query stimulus.
	QueryColumn = 0

	// MinReference is the minimum number of references a trial must present.
	// A single-reference trial has exactly one outcome and carries no information.
	MinReference = 2
)

// Trial defaults applied when per-trial metadata is omitted.
const (
	// DefaultNSelect is the number of references selected when n_select is omitted
	// or below the valid range.
	DefaultNSelect = 1

	// DefaultIsRanked is the ranking flag applied when is_ranked is omitted.
	DefaultIsRanked = true

	// DefaultGroupID is the agent-population index applied when group_id is omitted
	// or negative.
	DefaultGroupID = 0

	// DefaultSessionID is the session index applied when session_id is omitted.
	DefaultSessionID = 0
)

// Probability engine constants
const (
	// ProbabilityTolerance is the maximum drift allowed between a row sum of the
	// outcome probability matrix and 1 before the engine reports it.
	ProbabilityTolerance = 1e-6

	// MaxOutcomes bounds the number of enumerated outcomes for one configuration.
	// P(10, 10) is 3,628,800; anything larger is rejected rather than allocated.
	MaxOutcomes = 4_000_000
)

// Generator defaults mirror the most common experimental display (2 choose 1).
const (
	// DefaultGeneratorNReference is the number of references per generated trial.
	DefaultGeneratorNReference = 2

	// DefaultGeneratorNSelect is the number of selections per generated trial.
	DefaultGeneratorNSelect = 1
)
