package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_profile_store.go -package=mocks matchbook/internal/storage ProfileStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"matchbook/internal/profile"
)

var (
	// ErrNotFound is returned when no live row exists for the requested id.
	ErrNotFound = errors.New("profile not found")
	// ErrConflict is returned when an insert collides with an existing row.
	ErrConflict = errors.New("profile id already exists")
)

// timeLayout is the column format for created_at/updated_at/deleted_at.
// Fixed-width fractional seconds keep lexicographic order equal to
// chronological order, which ORDER BY created_at relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Filter describes equality and set-membership predicates for Query.
// Zero-valued fields are ignored. Soft-deleted rows are always excluded.
type Filter struct {
	OwnerID       string
	Name          string
	Contact       string
	Gender        string
	MaritalStatus string
	IDs           []string
}

// ProfileStore defines the system-of-record contract for profiles.
// It exclusively owns identity, the soft-delete flag and both timestamps;
// derived stores (search index, archive) are rebuilt from it.
type ProfileStore interface {
	// Insert adds a new profile. Returns ErrConflict if a row with the
	// same id already exists.
	Insert(ctx context.Context, p *profile.Profile) (string, error)
	// Upsert updates the live row with p.ID in place, or inserts one with
	// exactly that id. p.ID must be set by the caller.
	Upsert(ctx context.Context, p *profile.Profile) (string, error)
	// Get returns the live profile with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*profile.Profile, error)
	// GetByIDs batch-loads live profiles. Missing and soft-deleted ids are
	// silently absent from the result; order is unspecified.
	GetByIDs(ctx context.Context, ids []string) ([]*profile.Profile, error)
	// Query returns live profiles matching the filter, ordered by
	// created_at descending with id ascending as tie-break.
	Query(ctx context.Context, f Filter, limit, offset int) ([]*profile.Profile, error)
	// SoftDelete marks the profile deleted. Deleting an absent or already
	// deleted id is not an error.
	SoftDelete(ctx context.Context, id string) error
	// ListDeletedIDs returns the ids of all soft-deleted profiles, for
	// reconciliation sweeps against the search index.
	ListDeletedIDs(ctx context.Context) ([]string, error)
}

// ProfileRepo implements ProfileStore over a SQLite database.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

const profileColumns = `id, owner_id, name, contact, gender, age, height,
	marital_status, match_requirement, introduction, comments, cover,
	created_at, updated_at`

// Insert adds a new profile row. The id must be set by the caller.
func (r *ProfileRepo) Insert(ctx context.Context, p *profile.Profile) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("profile id must be set before insert")
	}

	intro, err := profile.EncodeNotes(p.Introduction)
	if err != nil {
		return "", err
	}
	comments, err := profile.EncodeNotes(p.Comments)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, owner_id, name, contact, gender, age, height,
			marital_status, match_requirement, introduction, comments, cover,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Contact, p.Gender, p.Age, p.Height,
		p.MaritalStatus, p.MatchRequirement, intro, comments, p.CoverURL,
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return "", ErrConflict
		}
		return "", fmt.Errorf("failed to insert profile: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return p.ID, nil
}

// Upsert updates the live row with p.ID in place or inserts a new row with
// that exact id. A soft-deleted row with the same id is resurrected: all
// fields are overwritten and both timestamps restart. The whole operation
// is one statement, so concurrent upserts of the same fresh id serialize
// inside SQLite instead of racing into duplicate inserts.
func (r *ProfileRepo) Upsert(ctx context.Context, p *profile.Profile) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("profile id must be set before upsert")
	}

	intro, err := profile.EncodeNotes(p.Introduction)
	if err != nil {
		return "", err
	}
	comments, err := profile.EncodeNotes(p.Comments)
	if err != nil {
		return "", err
	}

	// created_at survives updates of a live row and restarts when a
	// soft-deleted row is resurrected.
	now := time.Now().UTC()
	var createdAt string
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, owner_id, name, contact, gender, age, height,
			marital_status, match_requirement, introduction, comments, cover,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			contact = excluded.contact,
			gender = excluded.gender,
			age = excluded.age,
			height = excluded.height,
			marital_status = excluded.marital_status,
			match_requirement = excluded.match_requirement,
			introduction = excluded.introduction,
			comments = excluded.comments,
			cover = excluded.cover,
			created_at = CASE WHEN profiles.deleted_at IS NULL
				THEN profiles.created_at ELSE excluded.created_at END,
			updated_at = excluded.updated_at,
			deleted_at = NULL
		 RETURNING created_at`,
		p.ID, p.OwnerID, p.Name, p.Contact, p.Gender, p.Age, p.Height,
		p.MaritalStatus, p.MatchRequirement, intro, comments, p.CoverURL,
		now.Format(timeLayout), now.Format(timeLayout),
	).Scan(&createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to upsert profile: %w", err)
	}

	p.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to parse created_at: %w", err)
	}
	p.UpdatedAt = now
	return p.ID, nil
}

// Get returns the live profile with the given id, or ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, id string) (*profile.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ? AND deleted_at IS NULL",
		id,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// GetByIDs batch-loads live profiles for the given ids in one query.
func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []string) ([]*profile.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id IN ("+placeholders+") AND deleted_at IS NULL",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-load profiles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectProfiles(rows)
}

// Query returns live profiles matching the filter, newest first, ties broken
// by id ascending so pagination is reproducible.
func (r *ProfileRepo) Query(ctx context.Context, f Filter, limit, offset int) ([]*profile.Profile, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any

	addEq := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	addEq("owner_id", f.OwnerID)
	addEq("name", f.Name)
	addEq("contact", f.Contact)
	addEq("gender", f.Gender)
	addEq("marital_status", f.MaritalStatus)

	if len(f.IDs) > 0 {
		placeholders := strings.Repeat("?,", len(f.IDs)-1) + "?"
		where = append(where, "id IN ("+placeholders+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE "+strings.Join(where, " AND ")+
			" ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectProfiles(rows)
}

// SoftDelete marks the profile deleted. Idempotent: absent or already
// deleted ids report success.
func (r *ProfileRepo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete profile: %w", err)
	}
	return nil
}

// ListDeletedIDs returns the ids of all soft-deleted profiles.
func (r *ProfileRepo) ListDeletedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM profiles WHERE deleted_at IS NOT NULL ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted profiles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*profile.Profile, error) {
	var p profile.Profile
	var intro, comments, createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Contact, &p.Gender, &p.Age,
		&p.Height, &p.MaritalStatus, &p.MatchRequirement, &intro, &comments,
		&p.CoverURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Introduction = profile.DecodeNotes(intro)
	p.Comments = profile.DecodeNotes(comments)

	p.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	p.UpdatedAt, err = parseTimestamp(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &p, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		// Rows written by other tools may carry SQLite's DATETIME format.
		return time.Parse("2006-01-02 15:04:05", raw)
	}
	return t, nil
}

func collectProfiles(rows *sql.Rows) ([]*profile.Profile, error) {
	var profiles []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return profiles, nil
}
