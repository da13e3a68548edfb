// Package session drives one client connection from the name handshake
// through chat participation to teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gochat-hub/internal/command"
	"github.com/Tyrowin/gochat-hub/internal/hub"
	"github.com/Tyrowin/gochat-hub/internal/identity"
	"github.com/Tyrowin/gochat-hub/internal/logging"
	"github.com/Tyrowin/gochat-hub/internal/metrics"
	"github.com/Tyrowin/gochat-hub/internal/telemetry"
)

// RateLimitedReply is sent privately when an inbound item is discarded.
const RateLimitedReply = "Rate limit exceeded; message discarded."

// Options tunes a session. The zero value disables rate limiting.
type Options struct {
	// RateBurst is how many items may arrive back to back.
	RateBurst int
	// RateRefill is the time to earn back a full burst.
	RateRefill time.Duration

	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
}

// Session coordinates one connection. It is not reusable.
type Session struct {
	id      string
	conn    Conn
	shared  *Shared
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	limiter *rate.Limiter
	state   atomic.Int32
}

// New prepares a session for conn. Nothing is read until Run.
func New(conn Conn, shared *Shared, opts Options) *Session {
	id := uuid.NewString()

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	limit := rate.Inf
	if opts.RateBurst > 0 && opts.RateRefill > 0 {
		limit = rate.Limit(float64(opts.RateBurst) / opts.RateRefill.Seconds())
	}

	return &Session{
		id:      id,
		conn:    conn,
		shared:  shared,
		metrics: m,
		log:     log.WithFields(logging.SessionFields(id, conn.RemoteAddr())),
		limiter: rate.NewLimiter(limit, opts.RateBurst),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle step.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.WithField("state", st.String()).Trace("Session state changed")
}

// Run performs the handshake and then participates in chat until the client
// leaves, a write fails or ctx is cancelled. A normal end returns nil. The
// claimed name is always released before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "session",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	s.setState(Registering)
	user, err := s.register(ctx)
	if err != nil {
		s.setState(Closed)
		if ended(ctx, err) {
			s.log.Debug("Connection ended before registration")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		return err
	}
	span.SetAttributes(attribute.String("session.user", user.DisplayName()))

	err = s.participate(ctx, user)
	s.setState(Closed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session failed")
	}
	return err
}

// register reads proposed names until one is accepted. Rejections go back
// on the raw transport since nothing else writes to it yet.
func (s *Session) register(ctx context.Context) (identity.Identity, error) {
	for {
		proposed, err := s.conn.ReadText(ctx)
		if err != nil {
			return nil, err
		}

		user, err := s.shared.Identities.RegisterGuest(proposed)
		if err == nil {
			s.log = s.log.WithField("user", user.DisplayName())
			s.log.Info("User registered")
			return user, nil
		}

		s.metrics.RegistrationFailures.Inc()
		s.log.WithError(err).Debug("Registration rejected")
		if werr := s.conn.WriteText(err.Error()); werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportWrite, werr)
		}
	}
}

func (s *Session) participate(ctx context.Context, user identity.Identity) error {
	s.setState(Active)
	name := user.DisplayName()

	sub := s.shared.Hub.Subscribe()
	funnel := hub.NewFunnel(s.conn, s.log)
	s.metrics.ActiveSessions.Inc()

	s.reply(funnel, fmt.Sprintf("Welcome, %s!", name))
	s.publish(fmt.Sprintf("%s has joined.", name))

	taskCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(taskCtx)
	g.Go(func() error {
		defer cancel()
		return s.forward(gctx, sub, funnel)
	})
	g.Go(func() error {
		defer cancel()
		return s.read(gctx, user, funnel)
	})
	err := g.Wait()
	cancel()

	s.setState(Terminating)
	sub.Close()
	s.publish(fmt.Sprintf("(leave) %s has left.", name))
	s.shared.Identities.Release(name)
	s.metrics.ActiveSessions.Dec()
	funnel.Close()
	<-funnel.Done()

	if err != nil {
		s.log.WithError(err).Warn("Session ended with error")
	} else {
		s.log.Info("User left")
	}
	return err
}

// forward copies hub messages into the funnel. It stops when the funnel's
// writer fails, the subscription closes or ctx ends.
func (s *Session) forward(ctx context.Context, sub *hub.Subscription, funnel *hub.Funnel) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-funnel.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	for {
		msg, err := sub.Recv(ctx)
		var lagged *hub.LaggedError
		switch {
		case err == nil:
		case errors.As(err, &lagged):
			s.metrics.MessagesDropped.Add(float64(lagged.Skipped))
			s.log.WithField("skipped", lagged.Skipped).Warn("Subscriber lagged; messages dropped")
			continue
		case errors.Is(err, hub.ErrClosed):
			return nil
		default:
			return funnelErr(funnel)
		}

		if err := funnel.Send(msg); err != nil {
			return funnelErr(funnel)
		}
	}
}

func funnelErr(funnel *hub.Funnel) error {
	if err := funnel.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportWrite, err)
	}
	return nil
}

// read handles inbound items until the stream ends or ctx is cancelled.
func (s *Session) read(ctx context.Context, user identity.Identity, funnel *hub.Funnel) error {
	for {
		text, err := s.conn.ReadText(ctx)
		if err != nil {
			if ended(ctx, err) {
				return nil
			}
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if !s.limiter.Allow() {
			s.metrics.RateLimited.Inc()
			s.log.Debug("Rate limit exceeded; message discarded")
			s.reply(funnel, RateLimitedReply)
			continue
		}

		if command.IsInvocation(text) {
			s.reply(funnel, s.dispatch(ctx, user, text))
			continue
		}
		s.publish(fmt.Sprintf("%s: %s", user.DisplayName(), text))
	}
}

// dispatch runs a command line and returns the text for the caller.
func (s *Session) dispatch(ctx context.Context, user identity.Identity, line string) string {
	name, args := command.Parse(strings.TrimPrefix(line, command.Prefix))
	_, span := telemetry.Tracer().Start(ctx, "command.dispatch",
		trace.WithAttributes(attribute.String("command.name", name)))
	defer span.End()

	log := s.log.WithFields(logging.CommandFields(user.DisplayName(), name, args))

	reply, err := s.invoke(user, line)
	switch {
	case err == nil:
		s.metrics.CommandsInvoked.WithLabelValues(name, metrics.ResultOK).Inc()
		log.Debug("Command executed")
		return reply
	case errors.Is(err, command.ErrCommandNotFound):
		s.metrics.CommandsInvoked.WithLabelValues("unknown", metrics.ResultNotFound).Inc()
		log.Debug("Command not found")
	default:
		s.metrics.CommandsInvoked.WithLabelValues(name, metrics.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		log.WithError(err).Warn("Command failed")
	}
	return err.Error()
}

func (s *Session) invoke(user identity.Identity, line string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			name, _ := command.Parse(strings.TrimPrefix(line, command.Prefix))
			err = &command.ExecutionError{Name: name, Err: fmt.Errorf("command /%s failed unexpectedly", name)}
			s.log.WithField("panic", r).Error("Command handler panicked")
		}
	}()
	return s.shared.Commands.Dispatch(user, line)
}

func (s *Session) publish(msg string) {
	s.shared.Hub.Publish(msg)
	s.metrics.MessagesPublished.Inc()
}

// reply enqueues a private message. A failed enqueue means the writer is
// gone and forward is already shutting the session down.
func (s *Session) reply(funnel *hub.Funnel, msg string) {
	if err := funnel.Send(msg); err != nil {
		s.log.WithError(err).Debug("Private reply dropped")
	}
}

// ended reports whether err is the normal end of a read: the peer closed the
// stream or the session is being torn down.
func ended(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, ErrStreamEnded)
}
