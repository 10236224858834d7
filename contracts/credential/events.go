// Package credential holds the stable event contract published on the
// credential events topic. Consumers depend on these shapes only; internal
// models may change independently.
package credential

// ContractVersion identifies the schema of Event. Bump on breaking changes.
const ContractVersion = "v1.0.0"

// EventType names a credential lifecycle transition.
type EventType string

const (
	EventIssued  EventType = "credential.issued"
	EventRevoked EventType = "credential.revoked"
)

// Header names set on every published record.
const (
	HeaderEventType       = "event_type"
	HeaderContractVersion = "contract_version"
	HeaderRequestID       = "request_id"
)

// Event is the JSON payload of a credential lifecycle record. Timestamps are
// Unix milliseconds on the registry's logical clock. The record key is Key.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Version    string    `json:"version"`
	Key        string    `json:"key"`
	SubjectDID string    `json:"subject_did"`
	Issuer     string    `json:"issuer"`
	CID        string    `json:"cid"`
	IssuedAt   int64     `json:"issued_at"`
	ExpiresAt  *int64    `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	Actor      string    `json:"actor"`
	OccurredAt int64     `json:"occurred_at"`
	RequestID  string    `json:"request_id,omitempty"`
}
