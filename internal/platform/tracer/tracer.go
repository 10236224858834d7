// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Credential operations emit one span each. Subject DIDs are never put on a
// span verbatim; use HashSubject.
//
// Implementations:
//   - NoopTracer: tests and local runs
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := tr.Start(ctx, tracer.SpanCredentialIssue,
//	    tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(did)),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashSubject returns a short SHA-256 prefix of a subject DID so traces can be
// correlated without carrying the identifier itself.
func HashSubject(subjectDID string) string {
	if subjectDID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(subjectDID))
	return hex.EncodeToString(hash[:8])
}

const (
	SpanCredentialIssue    = "credential.issue"
	SpanCredentialRevoke   = "credential.revoke"
	SpanCredentialValidity = "credential.is_valid"
	SpanCredentialGet      = "credential.get"
)

const (
	AttrSubjectHash  = "credential.subject_hash"
	AttrCIDFormat    = "credential.cid_format"
	AttrCaller       = "credential.caller"
	AttrValid        = "credential.valid"
	AttrFound        = "credential.found"
	AttrStoreBackend = "store.backend"
)

const (
	EventCommitted      = "tx.committed"
	EventPublishSkipped = "event.publish_failed"
)
