package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

// SQLiteTrialStore implements TrialStore on a SQLite database.
type SQLiteTrialStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteTrialStore opens (or creates) the database psiz.db inside dir.
func NewSQLiteTrialStore(dir string) (*SQLiteTrialStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, DatabaseName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteTrialStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteTrialStore) Path() string {
	return s.dbPath
}

// Save stores t under name.
func (s *SQLiteTrialStore) Save(ctx context.Context, name string, t trials.Trials) (*TrialSetInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("trial set name is required")
	}
	if t == nil {
		return nil, fmt.Errorf("trial set %q: nil container", name)
	}

	rec := trialfile.NewRecord(t)
	hash, err := computeContentHash(rec.StimulusSet)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	info := &TrialSetInfo{
		ID:          rec.ID,
		Name:        name,
		Kind:        rec.Kind,
		TrialCount:  len(rec.StimulusSet),
		ConfigCount: len(rec.Configs),
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var createdAt string
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM trial_sets WHERE name = ?`, name).Scan(&info.ID, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to look up trial set %q: %w", name, err)
	default:
		if info.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		for _, table := range []string{"trials", "configs"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE set_id = ?`, info.ID); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trial_sets (id, name, kind, trial_count, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			trial_count = excluded.trial_count,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		info.ID, info.Name, string(info.Kind), info.TrialCount, info.ContentHash,
		info.CreatedAt.Format(time.RFC3339Nano), info.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert trial set: %w", err)
	}

	if err := insertTrials(ctx, tx, info.ID, rec); err != nil {
		return nil, err
	}
	if err := insertConfigs(ctx, tx, info.ID, rec.Configs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trial set: %w", err)
	}
	return info, nil
}

func insertTrials(ctx context.Context, tx *sql.Tx, setID string, rec *trialfile.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trials (set_id, trial_index, stimulus_set, n_reference, n_select, is_ranked, group_id, session_id, config_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trial insert: %w", err)
	}
	defer stmt.Close()

	observed := rec.Kind == constants.KindObservations
	for i, row := range rec.StimulusSet {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal trial %d: %w", i, err)
		}
		group, session := constants.DefaultGroupID, constants.DefaultSessionID
		if observed {
			group, session = rec.GroupID[i], rec.SessionID[i]
		}
		if _, err := stmt.ExecContext(ctx, setID, i, string(rowJSON),
			rec.NReference[i], rec.NSelect[i], boolToInt(rec.IsRanked[i]),
			group, session, rec.ConfigIdx[i]); err != nil {
			return fmt.Errorf("failed to insert trial %d: %w", i, err)
		}
	}
	return nil
}

func insertConfigs(ctx context.Context, tx *sql.Tx, setID string, configs []trials.Config) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO configs (set_id, config_index, n_reference, n_select, is_ranked, group_id, session_id, n_outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare config insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range configs {
		if _, err := stmt.ExecContext(ctx, setID, i, c.NReference, c.NSelect,
			boolToInt(c.IsRanked), c.GroupID, c.SessionID, c.NOutcome); err != nil {
			return fmt.Errorf("failed to insert config %d: %w", i, err)
		}
	}
	return nil
}

// Load rebuilds the trial set identified by ref. The stored configuration
// table is checked against the rebuilt one.
func (s *SQLiteTrialStore) Load(ctx context.Context, ref string) (trials.Trials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.infoUnlocked(ctx, ref)
	if err != nil {
		return nil, err
	}

	rec := &trialfile.Record{ID: info.ID, CreatedAt: info.CreatedAt, Kind: info.Kind}
	if err := s.loadTrials(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadConfigs(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Trials()
}

func (s *SQLiteTrialStore) loadTrials(ctx context.Context, rec *trialfile.Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stimulus_set, n_reference, n_select, is_ranked, group_id, session_id, config_index
		FROM trials WHERE set_id = ? ORDER BY trial_index`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	observed := rec.Kind == constants.KindObservations
	for rows.Next() {
		var (
			rowJSON                               string
			nRef, nSel, ranked, group, session, c int
		)
		if err := rows.Scan(&rowJSON, &nRef, &nSel, &ranked, &group, &session, &c); err != nil {
			return fmt.Errorf("failed to scan trial: %w", err)
		}
		var row []int
		if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
			return fmt.Errorf("failed to parse stimulus set row: %w", err)
		}
		rec.StimulusSet = append(rec.StimulusSet, row)
		rec.NReference = append(rec.NReference, nRef)
		rec.NSelect = append(rec.NSelect, nSel)
		rec.IsRanked = append(rec.IsRanked, ranked != 0)
		rec.ConfigIdx = append(rec.ConfigIdx, c)
		if observed {
			rec.GroupID = append(rec.GroupID, group)
			rec.SessionID = append(rec.SessionID, session)
		}
	}
	return rows.Err()
}

func (s *SQLiteTrialStore) loadConfigs(ctx context.Context, rec *trialfile.Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n_reference, n_select, is_ranked, group_id, session_id, n_outcome
		FROM configs WHERE set_id = ? ORDER BY config_index`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c      trials.Config
			ranked int
		)
		if err := rows.Scan(&c.NReference, &c.NSelect, &ranked, &c.GroupID, &c.SessionID, &c.NOutcome); err != nil {
			return fmt.Errorf("failed to scan config: %w", err)
		}
		c.IsRanked = ranked != 0
		rec.Configs = append(rec.Configs, c)
	}
	return rows.Err()
}

// Info returns the description of the trial set identified by ref.
func (s *SQLiteTrialStore) Info(ctx context.Context, ref string) (*TrialSetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.infoUnlocked(ctx, ref)
}

const infoColumns = `
	SELECT s.id, s.name, s.kind, s.trial_count,
		(SELECT COUNT(*) FROM configs c WHERE c.set_id = s.id),
		s.content_hash, s.created_at, s.updated_at
	FROM trial_sets s`

// infoUnlocked resolves ref without locking (caller must hold lock).
func (s *SQLiteTrialStore) infoUnlocked(ctx context.Context, ref string) (*TrialSetInfo, error) {
	row := s.db.QueryRowContext(ctx, infoColumns+` WHERE s.id = ? OR s.name = ? LIMIT 1`, ref, ref)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// List returns every stored trial set, oldest first.
func (s *SQLiteTrialStore) List(ctx context.Context) ([]TrialSetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, infoColumns+` ORDER BY s.created_at, s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trial sets: %w", err)
	}
	defer rows.Close()

	var infos []TrialSetInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, rows.Err()
}

// Delete removes the trial set identified by ref along with its trials.
func (s *SQLiteTrialStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.infoUnlocked(ctx, ref)
	if err != nil {
		return err
	}

	// Cascades to trials and configs via foreign keys
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trial_sets WHERE id = ?`, info.ID); err != nil {
		return fmt.Errorf("failed to delete trial set: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteTrialStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (*TrialSetInfo, error) {
	var (
		info                 TrialSetInfo
		kind                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&info.ID, &info.Name, &kind, &info.TrialCount, &info.ConfigCount,
		&info.ContentHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan trial set: %w", err)
	}
	info.Kind = constants.Kind(kind)

	var err error
	if info.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if info.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &info, nil
}

// Helper functions

func computeContentHash(stimulusSet [][]int) (string, error) {
	data, err := json.Marshal(stimulusSet)
	if err != nil {
		return "", fmt.Errorf("failed to hash stimulus set: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8]), nil // First 8 bytes for shorter hash
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
