//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=../mocks/mock_handler.go -package=mocks

package command

import "github.com/Tyrowin/gochat-hub/internal/identity"

// Handler executes a command on behalf of caller. args is everything after
// the command name with leading whitespace removed.
type Handler interface {
	Invoke(caller identity.Identity, args string) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(caller identity.Identity, args string) (string, error)

// Invoke calls f(caller, args).
func (f HandlerFunc) Invoke(caller identity.Identity, args string) (string, error) {
	return f(caller, args)
}
