package testutil

import (
	"vcregistry/internal/credential/models"
	id "vcregistry/pkg/domain"
)

// Shared fixture values. CIDs are longer than ten bytes.
const (
	SubjectAlice = "did:example:alice"
	SubjectBob   = "did:example:bob"

	IssuerUniversity id.CallerID = "did:example:university"
	IssuerEmployer   id.CallerID = "did:example:employer"

	CIDDegree  = "QmDegreeCredential01"
	CIDLicense = "bafyLicenseCredential"
)

// CredentialBuilder provides a fluent API for test credentials.
type CredentialBuilder struct {
	credential models.Credential
}

func NewCredentialBuilder() *CredentialBuilder {
	return &CredentialBuilder{
		credential: models.Credential{
			SubjectDID: SubjectAlice,
			Issuer:     IssuerUniversity,
			CID:        CIDDegree,
			IssuedAt:   1_000,
		},
	}
}

func (b *CredentialBuilder) WithSubject(subjectDID string) *CredentialBuilder {
	b.credential.SubjectDID = subjectDID
	return b
}

func (b *CredentialBuilder) WithIssuer(issuer id.CallerID) *CredentialBuilder {
	b.credential.Issuer = issuer
	return b
}

func (b *CredentialBuilder) WithCID(cid string) *CredentialBuilder {
	b.credential.CID = cid
	return b
}

func (b *CredentialBuilder) IssuedAt(ms int64) *CredentialBuilder {
	b.credential.IssuedAt = models.Timestamp(ms)
	return b
}

func (b *CredentialBuilder) ExpiresAt(ms int64) *CredentialBuilder {
	e := models.Timestamp(ms)
	b.credential.ExpiresAt = &e
	return b
}

func (b *CredentialBuilder) Revoked() *CredentialBuilder {
	b.credential.Revoked = true
	return b
}

func (b *CredentialBuilder) Build() models.Credential {
	c := b.credential
	if c.ExpiresAt != nil {
		e := *c.ExpiresAt
		c.ExpiresAt = &e
	}
	return c
}

// NewTestCredential returns a non-expiring, unrevoked credential.
func NewTestCredential(subjectDID string, issuer id.CallerID, cid string) models.Credential {
	return NewCredentialBuilder().WithSubject(subjectDID).WithIssuer(issuer).WithCID(cid).Build()
}
