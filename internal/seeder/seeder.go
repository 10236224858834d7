// Package seeder issues a small set of demo credentials so a local registry
// has something to query.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vcregistry/internal/credential/models"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/clock"
	"vcregistry/pkg/requestcontext"
)

// Registry is the subset of the credential service the seeder drives.
type Registry interface {
	Issue(ctx context.Context, caller id.CallerID, req models.IssueRequest) (*models.CredentialView, error)
	Revoke(ctx context.Context, caller id.CallerID, subjectDID, cid string) (*models.CredentialView, error)
}

// Seeder populates a registry with demo data through the normal service path,
// so events and metrics fire as they would for real traffic.
type Seeder struct {
	registry Registry
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a new seeder
func New(registry Registry, clk clock.Clock, logger *slog.Logger) *Seeder {
	return &Seeder{registry: registry, clock: clk, logger: logger}
}

type demoCredential struct {
	issuer    id.CallerID
	subject   string
	cid       string
	expiresIn time.Duration // zero means no expiry
	revoke    bool
}

// Demo issuers and subjects. The cids are CIDv0/CIDv1 strings so the
// cid_format field has something to show.
var demoCredentials = []demoCredential{
	{"did:example:university", "did:example:alice", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", 0, false},
	{"did:example:university", "did:example:bob", "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o", 0, true},
	{"did:example:employer", "did:example:alice", "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", 24 * time.Hour, false},
	{"did:example:employer", "did:example:carol", "employment-record-carol-2024", -time.Hour, false},
	{"did:example:dmv", "did:example:bob", "drivers-license-bob-0042", 365 * 24 * time.Hour, false},
}

// SeedAll issues the demo credentials. Credentials that already exist are
// skipped, so seeding a persistent store twice is harmless.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.InfoContext(ctx, "seeding demo credentials...")

	var issued, skipped int
	for _, d := range demoCredentials {
		now := s.clock.Now()
		callCtx := requestcontext.WithTime(ctx, now)

		req := models.IssueRequest{SubjectDID: d.subject, CID: d.cid}
		if d.expiresIn != 0 {
			exp := models.TimestampFrom(now.Add(d.expiresIn))
			req.ExpiresAt = &exp
		}

		if _, err := s.registry.Issue(callCtx, d.issuer, req); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				skipped++
				continue
			}
			return fmt.Errorf("failed to seed %s for %s: %w", d.cid, d.subject, err)
		}
		issued++

		if d.revoke {
			if _, err := s.registry.Revoke(callCtx, d.issuer, d.subject, d.cid); err != nil {
				return fmt.Errorf("failed to revoke seeded %s: %w", d.cid, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "demo credentials seeded",
		"issued", issued,
		"skipped", skipped,
	)
	return nil
}
