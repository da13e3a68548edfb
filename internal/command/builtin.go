package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/gochat-hub/internal/identity"
)

// NameLister exposes the names of connected clients.
type NameLister interface {
	Names() []string
}

// Defaults returns a registry populated with the built-in commands. online
// backs the who command.
func Defaults(online NameLister) (*Registry, error) {
	registry := NewRegistry()

	err := errors.Join(
		registry.Register(New("send", "sends a given message", "/send <text>", HandlerFunc(echo))),
		registry.Register(New("help", "lists the available commands", "/help", helpHandler(registry))),
		registry.Register(New("who", "lists connected users", "/who", whoHandler(online))),
	)
	return registry, err
}

func echo(_ identity.Identity, args string) (string, error) {
	return args, nil
}

func helpHandler(registry *Registry) HandlerFunc {
	return func(_ identity.Identity, _ string) (string, error) {
		var b strings.Builder
		b.WriteString("Available commands:")
		for _, cmd := range registry.List() {
			fmt.Fprintf(&b, "\n  %s - %s", cmd.Usage, cmd.Description)
		}
		return b.String(), nil
	}
}

func whoHandler(online NameLister) HandlerFunc {
	return func(_ identity.Identity, _ string) (string, error) {
		if online == nil {
			return "", errors.New("user list is unavailable")
		}
		names := online.Names()
		return fmt.Sprintf("Online (%d): %s", len(names), strings.Join(names, ", ")), nil
	}
}
