package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vcregistry/internal/credential/models"
	id "vcregistry/pkg/domain"
)

// PostgresStore persists credentials in the credentials table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction. Lookups inside a
// transaction take a row lock so a following Update cannot race.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, credential models.Credential) error {
	query := `
		INSERT INTO credentials (key, subject_did, issuer, cid, issued_at_ms, expires_at_ms, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO NOTHING
	`
	res, err := s.execer().ExecContext(ctx, query,
		credential.Key().String(),
		credential.SubjectDID,
		credential.Issuer.String(),
		credential.CID,
		int64(credential.IssuedAt),
		nullableTimestamp(credential.ExpiresAt),
		credential.Revoked,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key models.Key) (*models.Credential, error) {
	query := `
		SELECT subject_did, issuer, cid, issued_at_ms, expires_at_ms, revoked
		FROM credentials
		WHERE key = $1
	`
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	credential, err := scanCredential(s.execer().QueryRowContext(ctx, query, key.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find credential by key: %w", err)
	}
	return credential, nil
}

// Update rewrites every mutable and immutable column from the record.
func (s *PostgresStore) Update(ctx context.Context, credential models.Credential) error {
	query := `
		UPDATE credentials
		SET subject_did = $2, issuer = $3, cid = $4, issued_at_ms = $5, expires_at_ms = $6, revoked = $7
		WHERE key = $1
	`
	res, err := s.execer().ExecContext(ctx, query,
		credential.Key().String(),
		credential.SubjectDID,
		credential.Issuer.String(),
		credential.CID,
		int64(credential.IssuedAt),
		nullableTimestamp(credential.ExpiresAt),
		credential.Revoked,
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Credential, error) {
	var (
		c         models.Credential
		issuer    string
		issuedAt  int64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(&c.SubjectDID, &issuer, &c.CID, &issuedAt, &expiresAt, &c.Revoked); err != nil {
		return nil, err
	}
	c.Issuer = id.CallerID(issuer)
	c.IssuedAt = models.Timestamp(issuedAt)
	if expiresAt.Valid {
		e := models.Timestamp(expiresAt.Int64)
		c.ExpiresAt = &e
	}
	return &c, nil
}

func nullableTimestamp(t *models.Timestamp) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*t), Valid: true}
}
