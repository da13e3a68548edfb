//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=../mocks/mock_conn.go -package=mocks

package session

import (
	"context"
	"errors"
)

var (
	// ErrStreamEnded marks the normal end of the client's stream.
	ErrStreamEnded = errors.New("session: stream ended")
	// ErrTransportWrite marks a failed write to the client.
	ErrTransportWrite = errors.New("session: transport write failed")
)

// Conn is a message-oriented duplex stream of text items. ReadText must
// return when ctx is cancelled and wrap ErrStreamEnded when the peer closed
// the stream normally. WriteText is only called from one goroutine at a time.
type Conn interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(msg string) error
	Close() error
	RemoteAddr() string
}
