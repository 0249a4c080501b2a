// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidSnapshot marks a snapshot that violates the model constraints.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// LanguageProgress is the cumulative state of one course.
type LanguageProgress struct {
	Name             string `json:"name"`
	Level            int    `json:"level"`
	XP               int64  `json:"xp"`
	FromLanguage     string `json:"from_language,omitempty"`
	LearningLanguage string `json:"learning_language,omitempty"`
}

// Snapshot is the cumulative profile state of one user on one day.
type Snapshot struct {
	Username    string             `json:"username"`
	DisplayName string             `json:"display_name,omitempty"`
	Date        Date               `json:"date"`
	TotalXP     int64              `json:"total_xp"`
	StreakDays  int                `json:"streak_days"`
	Languages   []LanguageProgress `json:"languages"`
}

// Validate checks the snapshot invariants.
func (s Snapshot) Validate() error {
	if s.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidSnapshot)
	}
	// backends use control characters as key separators
	if strings.IndexFunc(s.Username, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %q: control character in username", ErrInvalidSnapshot, s.Username)
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: %s: missing date", ErrInvalidSnapshot, s.Username)
	}
	if s.Date.Before(MinDate) || s.Date.After(MaxDate) {
		return fmt.Errorf("%w: %s: date %s outside %s..%s", ErrInvalidSnapshot, s.Username, s.Date, MinDate, MaxDate)
	}
	if s.TotalXP < 0 {
		return fmt.Errorf("%w: %s: negative total xp %d", ErrInvalidSnapshot, s.Username, s.TotalXP)
	}
	if s.StreakDays < 0 {
		return fmt.Errorf("%w: %s: negative streak %d", ErrInvalidSnapshot, s.Username, s.StreakDays)
	}
	seen := make(map[string]struct{}, len(s.Languages))
	for _, l := range s.Languages {
		if l.Name == "" {
			return fmt.Errorf("%w: %s: language without name", ErrInvalidSnapshot, s.Username)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate language %q", ErrInvalidSnapshot, s.Username, l.Name)
		}
		seen[l.Name] = struct{}{}
		if l.Level < 0 || l.XP < 0 {
			return fmt.Errorf("%w: %s: negative progress for %q", ErrInvalidSnapshot, s.Username, l.Name)
		}
	}
	return nil
}

// Language returns the named course, if present.
func (s Snapshot) Language(name string) (LanguageProgress, bool) {
	for _, l := range s.Languages {
		if l.Name == name {
			return l, true
		}
	}
	return LanguageProgress{}, false
}

// Equal reports field equality. Nil and empty language lists are equal.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Username != o.Username || s.DisplayName != o.DisplayName || s.Date != o.Date ||
		s.TotalXP != o.TotalXP || s.StreakDays != o.StreakDays ||
		len(s.Languages) != len(o.Languages) {
		return false
	}
	for i := range s.Languages {
		if s.Languages[i] != o.Languages[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so stored values cannot be mutated by callers.
func (s Snapshot) Clone() Snapshot {
	if s.Languages != nil {
		langs := make([]LanguageProgress, len(s.Languages))
		copy(langs, s.Languages)
		s.Languages = langs
	}
	return s
}
