package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/league/internal/domain/model"
)

// Sentinel kinds for storage errors.
var (
	ErrStorageRead    = errors.New("storage read failed")
	ErrStorageWrite   = errors.New("storage write failed")
	ErrValidation     = errors.New("migration validation failed")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrClosed         = errors.New("store closed")
	ErrInvalidOptions = errors.New("invalid store options")
	ErrSchemaVersion  = errors.New("unsupported schema version")
)

// StorageError reports a backend failure. It matches its Kind
// (ErrStorageRead or ErrStorageWrite) and the underlying cause with errors.Is.
type StorageError struct {
	Backend string
	Op      string
	Kind    error
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StorageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func readErr(backend, op string, err error) error {
	return &StorageError{Backend: backend, Op: op, Kind: ErrStorageRead, Err: err}
}

func writeErr(backend, op string, err error) error {
	return &StorageError{Backend: backend, Op: op, Kind: ErrStorageWrite, Err: err}
}

// Key identifies one snapshot.
type Key struct {
	Username string
	Date     model.Date
}

func (k Key) String() string {
	return k.Username + "@" + k.Date.String()
}

// ValidationError lists the differences found between two stores.
type ValidationError struct {
	Missing   []Key // in source, absent from destination
	Extra     []Key // in destination only
	Differing []Key // present in both with different fields
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %d missing, %d extra, %d differing", ErrValidation, len(e.Missing), len(e.Extra), len(e.Differing))
	const maxListed = 5
	listed := 0
	for _, group := range [][]Key{e.Missing, e.Extra, e.Differing} {
		for _, k := range group {
			if listed == maxListed {
				b.WriteString(" ...")
				return b.String()
			}
			b.WriteString(" ")
			b.WriteString(k.String())
			listed++
		}
	}
	return b.String()
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Empty reports whether no difference was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Extra) == 0 && len(e.Differing) == 0
}
