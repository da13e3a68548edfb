package command

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-hub/internal/identity"
)

// Registry maps command names to commands. Lookups run concurrently;
// registration and removal take the write lock.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. A duplicate name is rejected and the registry is left
// untouched.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Remove deletes the command called name, if any.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.commands, name)
	r.mu.Unlock()
}

// Get looks name up with an exact, case-sensitive match.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.commands)
	slices.Sort(names)
	return lo.Map(names, func(name string, _ int) Command {
		return r.commands[name]
	})
}

// Parse splits line, with the prefix already removed, into the command name
// and its arguments. The split happens at the first run of whitespace; args
// is empty when there is none.
func Parse(line string) (name, args string) {
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimLeftFunc(line[idx:], unicode.IsSpace)
}

// Dispatch parses line, looks the command up and executes it for caller.
// line may carry the prefix or not.
func (r *Registry) Dispatch(caller identity.Identity, line string) (string, error) {
	name, args := Parse(strings.TrimPrefix(line, Prefix))

	cmd, ok := r.Get(name)
	if !ok {
		return "", &NotFoundError{Name: name}
	}

	reply, err := cmd.Execute(caller, args)
	if err != nil {
		return "", &ExecutionError{Name: name, Err: err}
	}
	return reply, nil
}

// IsInvocation reports whether text should be routed to Dispatch.
func IsInvocation(text string) bool {
	return strings.HasPrefix(text, Prefix)
}
