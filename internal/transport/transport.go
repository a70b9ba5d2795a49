// Package transport delivers executor events to connected sessions over an
// embedded NATS broker. The core publishes to stable-id and room subjects;
// the session layer subscribes and maps stable ids onto live connections.
// Delivery is fire-and-forget: disconnected sessions simply have no
// subscriber and the message is dropped by the broker.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/executor"
)

// Subject layout.
const (
	// sessionSubjectPrefix carries emit-scoped events, one subject per
	// stable entity id.
	sessionSubjectPrefix = "session."
	// roomSubjectPrefix carries broadcast-scoped events, one subject per
	// room id. Subscribers filter themselves out via the Exclude field.
	roomSubjectPrefix = "room."
)

// Config configures the embedded broker.
type Config struct {
	Host string `mapstructure:"host"`
	// Port 0 picks the NATS default; -1 picks a random free port.
	Port           int           `mapstructure:"port"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
}

// Message is the wire form of one delivered event.
type Message struct {
	// Target is the stable entity id for emit-scoped events.
	Target string `json:"target,omitempty"`
	// Room is the room id for broadcast-scoped events.
	Room string `json:"room,omitempty"`
	// Exclude is a stable entity id the subscriber must drop the message for.
	Exclude string `json:"exclude,omitempty"`
	Line    string `json:"line"`
}

// Server runs an embedded NATS broker plus an internal client connection.
type Server struct {
	ns   *server.Server
	conn *nats.Conn
	log  *zap.Logger

	startupTimeout time.Duration
}

// NewServer constructs the embedded broker.
//
// Precondition: log must not be nil.
func NewServer(cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		panic("transport.NewServer: log must not be nil")
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   cfg.Port,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("transport.NewServer: %w", err)
	}
	return &Server{ns: ns, log: log, startupTimeout: timeout}, nil
}

// Start launches the broker and opens the internal client connection.
func (s *Server) Start(ctx context.Context) error {
	s.ns.Start()
	if !s.ns.ReadyForConnections(s.startupTimeout) {
		return fmt.Errorf("transport.Server.Start: broker not ready for connections")
	}

	conn, err := nats.Connect(s.ns.ClientURL())
	if err != nil {
		return fmt.Errorf("transport.Server.Start: client connection: %w", err)
	}
	s.conn = conn
	s.log.Info("message broker listening", zap.String("addr", s.ns.Addr().String()))
	return nil
}

// Stop closes the client connection and shuts the broker down.
func (s *Server) Stop(ctx context.Context) error {
	if s.conn != nil {
		s.conn.Close()
	}
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	return nil
}

// Subscribe registers a handler for one subject. The returned function
// removes the subscription.
func (s *Server) Subscribe(subject string, handler func(Message)) (func(), error) {
	if s.conn == nil {
		return nil, fmt.Errorf("transport.Server.Subscribe: broker not started")
	}
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			s.log.Warn("dropping malformed message", zap.String("subject", subject), zap.Error(err))
			return
		}
		handler(m)
	})
	if err != nil {
		return nil, fmt.Errorf("transport.Server.Subscribe: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// SessionSubject is the subject carrying emits for one stable entity id.
func SessionSubject(entityID string) string {
	return sessionSubjectPrefix + entityID
}

// RoomSubject is the subject carrying broadcasts for one room id.
func RoomSubject(roomID string) string {
	return roomSubjectPrefix + roomID
}

// Publisher turns executor events into broker messages.
type Publisher struct {
	server *Server
	log    *zap.Logger
}

// NewPublisher constructs a Publisher.
//
// Precondition: server and log must not be nil.
func NewPublisher(server *Server, log *zap.Logger) *Publisher {
	if server == nil {
		panic("transport.NewPublisher: server must not be nil")
	}
	if log == nil {
		panic("transport.NewPublisher: log must not be nil")
	}
	return &Publisher{server: server, log: log}
}

// Deliver publishes a batch of events. Per-event failures are logged and
// swallowed: delivery is best-effort and must never block or fail the tick.
func (p *Publisher) Deliver(events []executor.Event) {
	for _, ev := range events {
		var subject string
		msg := Message{Line: ev.Line}
		switch ev.Scope {
		case executor.ScopeEmit:
			subject = SessionSubject(ev.TargetID)
			msg.Target = ev.TargetID
		case executor.ScopeBroadcast:
			subject = RoomSubject(ev.RoomID)
			msg.Room = ev.RoomID
			msg.Exclude = ev.ExcludeID
		default:
			continue
		}

		data, err := json.Marshal(msg)
		if err != nil {
			p.log.Warn("dropping unserializable event", zap.Error(err))
			continue
		}
		if err := p.server.conn.Publish(subject, data); err != nil {
			p.log.Warn("event delivery failed",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}
}
