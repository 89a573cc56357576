package tokengate

import (
	"io"

	"github.com/MrEthical07/tokengate/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one login, logout, or rejection record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

type ZapSink = audit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs audit events through log under the "audit" name.
func NewZapSink(log *zap.Logger) *ZapSink {
	return audit.NewZapSink(log)
}
