package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/record"
)

// AuditEvent describes one completed write.
type AuditEvent struct {
	DAO       string         `json:"dao"`
	Method    dao.Method     `json:"method"`
	Operation dao.Operation  `json:"operation"`
	Filter    filter.Filter  `json:"filter,omitempty"`
	Record    record.Record  `json:"record,omitempty"`
	Changes   filter.Changes `json:"changes,omitempty"`
	At        time.Time      `json:"at"`
}

// AuditSink receives audit events.
type AuditSink interface {
	Emit(ctx context.Context, e AuditEvent) error
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, e AuditEvent) error

func (f AuditSinkFunc) Emit(ctx context.Context, e AuditEvent) error { return f(ctx, e) }

// Audit emits an AuditEvent to sink after every write. The write has
// already happened, so sink errors are logged and not returned.
func Audit(sink AuditSink) dao.Middleware {
	return dao.Middleware{
		Name: "audit",
		After: func(ctx context.Context, res dao.Result, mc *dao.MiddlewareContext) (dao.After, error) {
			e := AuditEvent{
				DAO:       mc.Name,
				Method:    mc.Method,
				Operation: res.Operation(),
				At:        time.Now().UTC(),
			}
			switch r := res.(type) {
			case dao.InsertResult:
				e.Record = r.Record
			case dao.UpdateResult:
				e.Filter, e.Changes = r.Params.Filter, r.Params.Changes
			case dao.ReplaceResult:
				e.Filter, e.Record = r.Params.Filter, r.Params.Replace
			case dao.DeleteResult:
				e.Filter = r.Params.Filter
			default:
				return dao.After{}, nil
			}
			if err := sink.Emit(ctx, e); err != nil {
				mc.Logger.Warn("audit event dropped",
					"dao", mc.Name,
					"method", mc.Method,
					"error", err,
				)
			}
			return dao.After{}, nil
		},
	}
}

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes audit events as JSON to "<prefix>.<dao>.<method>".
type NATSSink struct {
	pub    Publisher
	prefix string
}

// NewNATSSink creates a NATSSink. An empty prefix defaults to "lattice.audit".
func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "lattice.audit"
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// Subject returns the subject events of a DAO method are published to.
func (s *NATSSink) Subject(daoName string, m dao.Method) string {
	return s.prefix + "." + daoName + "." + string(m)
}

func (s *NATSSink) Emit(_ context.Context, e AuditEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	msg := nats.NewMsg(s.Subject(e.DAO, e.Method))
	msg.Data = data
	msg.Header.Set("Lattice-Operation", string(e.Operation))
	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
