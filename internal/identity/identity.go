// Package identity tracks the display names claimed by connected clients and
// enforces the format and uniqueness rules applied at registration time.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// MinNameLength is the shortest accepted display name, in characters.
	MinNameLength = 3
	// MaxNameLength is the longest accepted display name, in characters.
	MaxNameLength = 30
)

// ErrInvalidIdentity is returned for both format and uniqueness violations.
// The two cases differ only in their message text.
var ErrInvalidIdentity = errors.New("invalid identity")

// InvalidError describes why a proposed name was rejected. Its message is
// meant to be shown to the client verbatim.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return e.Reason }

// Unwrap lets errors.Is match ErrInvalidIdentity.
func (e *InvalidError) Unwrap() error { return ErrInvalidIdentity }

// Identity is the name a client is known by for the lifetime of its session.
// The set of implementations is closed to this package.
type Identity interface {
	DisplayName() string
	isIdentity()
}

// Guest is an identity claimed by name alone.
type Guest struct {
	name string
}

// DisplayName returns the normalized name.
func (g Guest) DisplayName() string { return g.name }

func (Guest) isIdentity() {}

// Registered is an identity backed by an account. No registration path
// produces one yet.
type Registered struct {
	name string
}

// DisplayName returns the normalized name.
func (r Registered) DisplayName() string { return r.name }

func (Registered) isIdentity() {}

// NormalizeName trims surrounding whitespace and lowercases the name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Registry holds the set of names currently in use.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// RegisterGuest normalizes proposed, validates it and claims it. The
// uniqueness check and the insert happen under the same lock, so two
// concurrent attempts for one name can never both succeed.
func (r *Registry) RegisterGuest(proposed string) (Identity, error) {
	name := NormalizeName(proposed)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateName(r.names, name); err != nil {
		return nil, err
	}
	r.names[name] = struct{}{}
	return Guest{name: name}, nil
}

func validateName(taken map[string]struct{}, name string) error {
	length := utf8.RuneCountInString(name)
	if length < MinNameLength || length > MaxNameLength {
		return &InvalidError{Reason: fmt.Sprintf(
			"Username must be between %d and %d characters long. %s is %d characters long.",
			MinNameLength, MaxNameLength, name, length)}
	}
	if _, exists := taken[name]; exists {
		return &InvalidError{Reason: fmt.Sprintf("Username %s is already taken.", name)}
	}
	return nil
}

// Release frees name. Releasing a name that is not held is a no-op.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

// Contains reports whether name is currently claimed.
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[name]
	return ok
}

// Len returns the number of claimed names.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Names returns the claimed names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}
