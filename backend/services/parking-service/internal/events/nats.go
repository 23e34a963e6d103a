package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "parkcard.events"

// NATSPublisher forwards events to "<prefix>.<event type>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS dials url, authenticating with token when it is set.
func ConnectNATS(url, token string) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("events: nats url is empty")
	}
	opts := []nats.Option{
		nats.Name("parking-service"),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish implements Sink.
func (p *NATSPublisher) Publish(_ context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(evt.Type), payload)
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
