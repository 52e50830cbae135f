package protocol

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrUnexpectedKind = errors.New("protocol: message kind not allowed in session state")
	ErrNoHandler      = errors.New("protocol: no handler for message kind")
	ErrHandlerPanic   = errors.New("protocol: handler panicked")
)

// SessionState is the protocol phase of the peer a message came from.
type SessionState int

const (
	StateJoining SessionState = iota // server side, before PlayerInit
	StateJoined                      // server side, handshake complete
	StateClient                      // client side, talking to the server
)

func (s SessionState) String() string {
	switch s {
	case StateJoining:
		return "Joining"
	case StateJoined:
		return "Joined"
	case StateClient:
		return "Client"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one decoded message for session sess.
type HandlerFunc[S any] func(sess S, m Message)

type handlerEntry[S any] struct {
	fn            HandlerFunc[S]
	allowedStates map[SessionState]bool
}

// Dispatcher maps message kinds to handlers with state-based access control.
type Dispatcher[S any] struct {
	handlers map[Kind]*handlerEntry[S]
	log      *zap.Logger
}

func NewDispatcher[S any](log *zap.Logger) *Dispatcher[S] {
	return &Dispatcher[S]{
		handlers: make(map[Kind]*handlerEntry[S]),
		log:      log,
	}
}

// Register maps kind to fn, restricted to the given session states.
func (d *Dispatcher[S]) Register(kind Kind, states []SessionState, fn HandlerFunc[S]) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	d.handlers[kind] = &handlerEntry[S]{fn: fn, allowedStates: allowed}
}

// Dispatch validates the session state and calls the handler for m.Kind.
func (d *Dispatcher[S]) Dispatch(sess S, state SessionState, m Message) error {
	entry, ok := d.handlers[m.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, m.Kind)
	}
	if !entry.allowedStates[state] {
		d.log.Warn("message kind not allowed",
			zap.Stringer("kind", m.Kind),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%w: %s in %s", ErrUnexpectedKind, m.Kind, state)
	}
	return d.safeCall(entry.fn, sess, m)
}

// safeCall keeps one bad message from taking down the tick loop.
func (d *Dispatcher[S]) safeCall(fn HandlerFunc[S], sess S, m Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("handler panic recovered",
				zap.Stringer("kind", m.Kind),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, m.Kind, rec)
		}
	}()
	fn(sess, m)
	return nil
}
