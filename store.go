package petpal

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding per-user companion memory:
// profiles, the append-only fact log, told stories, and observed turns.
type Store struct {
	db      *sql.DB
	entropy *ulid.LockedMonotonicReader // monotonic so same-second rows still sort by id
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("petpal: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("petpal: open db: %w", err)
	}

	// Single connection avoids write contention for our scale
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		entropy: &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		},
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("petpal: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)

	var version int
	s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS profiles (
				user_id           TEXT PRIMARY KEY,
				display_name      TEXT NOT NULL DEFAULT '',
				pet_preference    TEXT NOT NULL DEFAULT 'unspecified',
				interaction_style TEXT NOT NULL DEFAULT 'unknown',
				turn_count        INTEGER NOT NULL DEFAULT 0,
				created_at        TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS facts (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
				key        TEXT NOT NULL,
				value      TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id);
			CREATE INDEX IF NOT EXISTS idx_facts_user_key ON facts(user_id, key);

			CREATE TABLE IF NOT EXISTS told_stories (
				user_id  TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
				story_id TEXT NOT NULL,
				theme    TEXT NOT NULL,
				told_at  TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (user_id, story_id)
			);

			CREATE TABLE IF NOT EXISTS turns (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
				length      INTEGER NOT NULL,
				quick_reply INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id);

			PRAGMA foreign_keys = ON;
		`); err != nil {
			return err
		}
		s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
	}

	return nil
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// validateUserID rejects empty ids and ids containing whitespace or control
// characters before any state is touched.
func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" || len(userID) > 128 {
		return ErrInvalidIdentifier
	}
	for _, r := range userID {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidIdentifier
		}
	}
	return nil
}

// GetOrCreateProfile returns the profile for a user, creating a default one
// on first contact. Idempotent.
func (s *Store) GetOrCreateProfile(userID string) (*UserProfile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`
		INSERT INTO profiles (user_id) VALUES (?)
		ON CONFLICT(user_id) DO NOTHING`, userID,
	); err != nil {
		return nil, fmt.Errorf("petpal: create profile: %w", err)
	}

	p := &UserProfile{
		UserID:       userID,
		ToldStoryIDs: make(map[string]bool),
		UsedThemes:   make(map[string]bool),
	}

	var created string
	err := s.db.QueryRow(`
		SELECT display_name, pet_preference, interaction_style, turn_count, created_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.DisplayName, (*string)(&p.PetPreference), (*string)(&p.InteractionStyle), &p.TurnCount, &created)
	if err != nil {
		return nil, fmt.Errorf("petpal: load profile: %w", err)
	}
	p.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)

	if err := s.loadFacts(p); err != nil {
		return nil, err
	}
	if err := s.loadToldStories(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) loadFacts(p *UserProfile) error {
	rows, err := s.db.Query(`
		SELECT id, key, value, created_at FROM facts
		WHERE user_id = ? ORDER BY created_at ASC, id ASC`, p.UserID)
	if err != nil {
		return fmt.Errorf("petpal: load facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Fact
		var created string
		if err := rows.Scan(&f.ID, &f.Key, &f.Value, &created); err != nil {
			return err
		}
		f.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		p.Facts = append(p.Facts, f)
	}
	return rows.Err()
}

func (s *Store) loadToldStories(p *UserProfile) error {
	rows, err := s.db.Query(`
		SELECT story_id, theme FROM told_stories WHERE user_id = ?`, p.UserID)
	if err != nil {
		return fmt.Errorf("petpal: load told stories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var storyID, theme string
		if err := rows.Scan(&storyID, &theme); err != nil {
			return err
		}
		p.ToldStoryIDs[storyID] = true
		p.UsedThemes[theme] = true
	}
	return rows.Err()
}

// RecordFact appends a fact to the user's log. The newest row per key is the
// current value; older rows stay for audit. Last write wins per key.
func (s *Store) RecordFact(userID, key, value string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO facts (id, user_id, key, value) VALUES (?, ?, ?, ?)`,
		s.newID(), userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("petpal: record fact: %w", err)
	}
	return nil
}

// MarkStoryTold adds a story and its theme to the user's told sets.
// Idempotent: re-marking an already-told story is a no-op.
func (s *Store) MarkStoryTold(userID, storyID, theme string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO told_stories (user_id, story_id, theme) VALUES (?, ?, ?)
		ON CONFLICT(user_id, story_id) DO NOTHING`,
		userID, storyID, theme,
	)
	if err != nil {
		return fmt.Errorf("petpal: mark story told: %w", err)
	}
	return nil
}

// UpdateStyle overwrites the user's interaction style.
func (s *Store) UpdateStyle(userID string, style InteractionStyle) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE profiles SET interaction_style = ? WHERE user_id = ?`,
		string(style), userID,
	)
	if err != nil {
		return fmt.Errorf("petpal: update style: %w", err)
	}
	return nil
}

// UpdateProfileField sets display_name or pet_preference on the profile row.
func (s *Store) UpdateProfileField(userID, column, value string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	switch column {
	case "display_name", "pet_preference":
	default:
		return fmt.Errorf("petpal: unknown profile column %q", column)
	}
	_, err := s.db.Exec(
		`UPDATE profiles SET `+column+` = ? WHERE user_id = ?`, value, userID)
	if err != nil {
		return fmt.Errorf("petpal: update %s: %w", column, err)
	}
	return nil
}

// RecordTurn stores utterance metadata for the style estimator and bumps the
// profile's turn counter.
func (s *Store) RecordTurn(userID string, meta TurnMeta) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	quick := 0
	if meta.QuickReply {
		quick = 1
	}
	if _, err := s.db.Exec(`
		INSERT INTO turns (id, user_id, length, quick_reply) VALUES (?, ?, ?, ?)`,
		s.newID(), userID, meta.Length, quick,
	); err != nil {
		return fmt.Errorf("petpal: record turn: %w", err)
	}
	_, err := s.db.Exec(`
		UPDATE profiles SET turn_count = turn_count + 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("petpal: bump turn count: %w", err)
	}
	return nil
}

// RecentTurns returns up to n most recent turn metas, newest first.
func (s *Store) RecentTurns(userID string, n int) ([]TurnMeta, error) {
	rows, err := s.db.Query(`
		SELECT length, quick_reply FROM turns
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("petpal: recent turns: %w", err)
	}
	defer rows.Close()

	var metas []TurnMeta
	for rows.Next() {
		var m TurnMeta
		var quick int
		if err := rows.Scan(&m.Length, &quick); err != nil {
			return nil, err
		}
		m.QuickReply = quick == 1
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Reset clears the user's told-story and used-theme sets only. Display name,
// facts, style, and turn history are untouched. Used once the catalog is
// exhausted so stories may repeat.
func (s *Store) Reset(userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM told_stories WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("petpal: reset: %w", err)
	}
	return nil
}

// EnforceFactLimit deletes the oldest fact rows if a user exceeds the cap.
func (s *Store) EnforceFactLimit(userID string, maxCount int) error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM facts WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return err
	}
	if count <= maxCount {
		return nil
	}

	excess := count - maxCount
	_, err := s.db.Exec(`
		DELETE FROM facts WHERE id IN (
			SELECT id FROM facts
			WHERE user_id = ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?
		)`, userID, excess,
	)
	return err
}

// ActiveUserIDs returns all user ids with a profile row.
func (s *Store) ActiveUserIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT user_id FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
