package session

import (
	"fmt"

	"github.com/Tyrowin/gochat-hub/internal/command"
	"github.com/Tyrowin/gochat-hub/internal/hub"
	"github.com/Tyrowin/gochat-hub/internal/identity"
)

// Shared is the process-wide state every session is handed at creation.
type Shared struct {
	Hub        *hub.Hub
	Identities *identity.Registry
	Commands   *command.Registry
}

// NewShared builds the hub, an empty identity registry and the built-in
// commands. hubCapacity bounds each subscriber's queue.
func NewShared(hubCapacity int) (*Shared, error) {
	identities := identity.NewRegistry()
	commands, err := command.Defaults(identities)
	if err != nil {
		return nil, fmt.Errorf("register built-in commands: %w", err)
	}
	return &Shared{
		Hub:        hub.New(hubCapacity),
		Identities: identities,
		Commands:   commands,
	}, nil
}
