// Package command holds the named server-side operations clients can invoke
// with a leading prefix, and the registry sessions dispatch through.
package command

import (
	"errors"
	"fmt"

	"github.com/Tyrowin/gochat-hub/internal/identity"
)

// Prefix marks an inbound item as a command invocation.
const Prefix = "/"

var (
	// ErrDuplicateCommand is returned when registering a name that is taken.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrCommandNotFound is wrapped by NotFoundError.
	ErrCommandNotFound = errors.New("command not found")
	// ErrCommandExecution is wrapped by ExecutionError.
	ErrCommandExecution = errors.New("command execution failed")
)

// NotFoundError reports a lookup for a name with no registered command.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Command `%s%s` not found.", Prefix, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrCommandNotFound }

// ExecutionError carries a failure reported by a handler. Its message is the
// handler's message, unchanged.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

// Is matches ErrCommandExecution in addition to the wrapped error.
func (e *ExecutionError) Is(target error) bool { return target == ErrCommandExecution }

func (e *ExecutionError) Unwrap() error { return e.Err }

// Command is an immutable named operation plus the metadata shown by /help.
type Command struct {
	Name        string
	Description string
	Usage       string
	handler     Handler
}

// New builds a Command.
func New(name, description, usage string, handler Handler) Command {
	return Command{
		Name:        name,
		Description: description,
		Usage:       usage,
		handler:     handler,
	}
}

// Execute invokes the handler and returns its result verbatim.
func (c Command) Execute(caller identity.Identity, args string) (string, error) {
	return c.handler.Invoke(caller, args)
}

func (c Command) String() string {
	return fmt.Sprintf("%s: %s", c.Name, c.Description)
}
