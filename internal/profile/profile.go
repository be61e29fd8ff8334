package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Notes holds free-text sections keyed by label, e.g.
// {"background": "...", "hobbies": "..."}. Notes are persisted as a single
// JSON text column; use EncodeNotes/DecodeNotes at the storage boundary.
type Notes map[string]string

// Profile is the central record: a person managed by the matchmaking service.
// CreatedAt/UpdatedAt are owned by the relational store and must not be set
// by callers. A non-nil DeletedAt means the profile is soft-deleted.
type Profile struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Name             string     `json:"name"`
	Contact          string     `json:"contact"`
	Gender           string     `json:"gender"`
	Age              int        `json:"age"`
	Height           int        `json:"height"`
	MaritalStatus    string     `json:"marital_status"`
	MatchRequirement string     `json:"match_requirement"`
	Introduction     Notes      `json:"introduction"`
	Comments         Notes      `json:"comments"`
	CoverURL         string     `json:"cover,omitempty"`
	CreatedAt        time.Time  `json:"created_at,omitzero"`
	UpdatedAt        time.Time  `json:"updated_at,omitzero"`
	DeletedAt        *time.Time `json:"-"`
}

// SearchText builds the denormalized text projection indexed by the search
// backend. It is regenerated in full on every save; the index never receives
// partial updates.
func (p *Profile) SearchText() string {
	var b strings.Builder
	writeField := func(label, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}

	writeField("name", p.Name)
	writeField("gender", p.Gender)
	if p.Age > 0 {
		writeField("age", strconv.Itoa(p.Age))
	}
	if p.Height > 0 {
		writeField("height", strconv.Itoa(p.Height)+"cm")
	}
	writeField("marital_status", p.MaritalStatus)
	writeField("match_requirement", p.MatchRequirement)
	for _, label := range sortedLabels(p.Introduction) {
		writeField(label, p.Introduction[label])
	}
	for _, label := range sortedLabels(p.Comments) {
		writeField(label, p.Comments[label])
	}
	return b.String()
}

// FacetMeta returns the small metadata subset the search backend can filter
// on with equality predicates.
func (p *Profile) FacetMeta() map[string]string {
	meta := make(map[string]string, 3)
	if p.OwnerID != "" {
		meta["owner_id"] = p.OwnerID
	}
	if p.Gender != "" {
		meta["gender"] = p.Gender
	}
	if p.MaritalStatus != "" {
		meta["marital_status"] = p.MaritalStatus
	}
	return meta
}

// Validate checks caller-supplied fields before a save.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	if p.Height < 0 {
		return fmt.Errorf("height must not be negative")
	}
	return nil
}

// EncodeNotes serializes notes for storage in a relational text column.
// A nil map encodes as "{}" so the column is never NULL.
func EncodeNotes(n Notes) (string, error) {
	if n == nil {
		n = Notes{}
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notes: %w", err)
	}
	return string(raw), nil
}

// DecodeNotes parses a notes column back into a map. Empty or malformed
// column values decode to an empty map rather than failing the whole row:
// notes are auxiliary text and a corrupt column must not make the profile
// unreadable.
func DecodeNotes(raw string) Notes {
	if raw == "" {
		return Notes{}
	}
	var n Notes
	if err := json.Unmarshal([]byte(raw), &n); err != nil || n == nil {
		return Notes{}
	}
	return n
}

func sortedLabels(n Notes) []string {
	labels := make([]string, 0, len(n))
	for label := range n {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
