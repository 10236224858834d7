package models

import (
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// MinCIDLength is the shortest content identifier accepted, in bytes.
// Anything of ten bytes or fewer is rejected.
const MinCIDLength = 11

// keySeparator joins subject DID and CID into the storage key.
const keySeparator = ":"

// Timestamp is a logical time in Unix milliseconds.
type Timestamp int64

// TimestampFrom truncates t to millisecond precision.
func TimestampFrom(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Key identifies a credential: subject DID and CID joined by ":".
//
// The join is not injective. ("a", "b:cid...") and ("a:b", "cid...") produce
// the same key and therefore address the same record.
type Key string

// KeyFor derives the storage key for a subject/CID pair.
func KeyFor(subjectDID, cid string) Key {
	return Key(subjectDID + keySeparator + cid)
}

func (k Key) String() string {
	return string(k)
}

// ValidateLookup is the input gate shared by every registry operation.
// It runs before any store access.
func ValidateLookup(subjectDID, cid string) error {
	if subjectDID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject_did is required")
	}
	if len(cid) < MinCIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, "cid must be longer than 10 bytes")
	}
	return nil
}

// Credential is the persisted registry record.
type Credential struct {
	SubjectDID string      `json:"subject_did"`
	Issuer     id.CallerID `json:"issuer"`
	CID        string      `json:"cid"`
	IssuedAt   Timestamp   `json:"issued_at"`
	ExpiresAt  *Timestamp  `json:"expires_at"`
	Revoked    bool        `json:"revoked"`
}

func (c *Credential) Key() Key {
	return KeyFor(c.SubjectDID, c.CID)
}

// IsValidAt reports whether the credential is neither revoked nor expired at
// now. A credential expires at the first millisecond equal to ExpiresAt.
func (c *Credential) IsValidAt(now Timestamp) bool {
	if c.Revoked {
		return false
	}
	if c.ExpiresAt != nil && now >= *c.ExpiresAt {
		return false
	}
	return true
}

// IsIssuedBy reports whether caller is the recorded issuer.
func (c *Credential) IsIssuedBy(caller id.CallerID) bool {
	return c.Issuer == caller
}

// Revoke marks the credential revoked. Revoking twice is a no-op.
func (c *Credential) Revoke() {
	c.Revoked = true
}

// IssueRequest captures what an issuer supplies. The issuer identity and the
// issuance time come from the caller context, not the request.
type IssueRequest struct {
	SubjectDID string
	CID        string
	ExpiresAt  *Timestamp
}

// CredentialView is the read model returned to callers.
type CredentialView struct {
	SubjectDID string     `json:"subject_did"`
	Issuer     string     `json:"issuer"`
	CID        string     `json:"cid"`
	IssuedAt   Timestamp  `json:"issued_at"`
	ExpiresAt  *Timestamp `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	CIDFormat  CIDFormat  `json:"cid_format"`
}

// ToView renders the credential as stored. Validity is not derived here.
func (c *Credential) ToView() *CredentialView {
	var expires *Timestamp
	if c.ExpiresAt != nil {
		e := *c.ExpiresAt
		expires = &e
	}
	return &CredentialView{
		SubjectDID: c.SubjectDID,
		Issuer:     c.Issuer.String(),
		CID:        c.CID,
		IssuedAt:   c.IssuedAt,
		ExpiresAt:  expires,
		Revoked:    c.Revoked,
		CIDFormat:  DetectCIDFormat(c.CID),
	}
}

// CIDFormat describes how a CID string decodes as an IPFS content identifier.
// It is informational; registry operations treat CIDs as opaque bytes.
type CIDFormat string

const (
	CIDFormatV0     CIDFormat = "cidv0"
	CIDFormatV1     CIDFormat = "cidv1"
	CIDFormatOpaque CIDFormat = "opaque"
)

// DetectCIDFormat never rejects input; undecodable CIDs are "opaque".
func DetectCIDFormat(cid string) CIDFormat {
	if strings.TrimSpace(cid) == "" {
		return CIDFormatOpaque
	}
	parsed, err := gocid.Decode(cid)
	if err != nil {
		return CIDFormatOpaque
	}
	switch parsed.Version() {
	case 0:
		return CIDFormatV0
	case 1:
		return CIDFormatV1
	default:
		return CIDFormatOpaque
	}
}
