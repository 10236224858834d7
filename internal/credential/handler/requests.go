package handler

import (
	"net/http"

	"vcregistry/internal/credential/models"
)

// HTTP request DTOs. Subject DIDs and CIDs are passed through verbatim: the
// registry owns the emptiness and minimum-length rules and puts no upper
// bound on either. The request body cap is the only size limit.

type IssueCredentialRequest struct {
	SubjectDID string `json:"subject_did"`
	CID        string `json:"cid"`
	ExpiresAt  *int64 `json:"expires_at"` // unix ms, null for no expiry
}

func (r *IssueCredentialRequest) ToModel() models.IssueRequest {
	req := models.IssueRequest{SubjectDID: r.SubjectDID, CID: r.CID}
	if r.ExpiresAt != nil {
		exp := models.Timestamp(*r.ExpiresAt)
		req.ExpiresAt = &exp
	}
	return req
}

type RevokeCredentialRequest struct {
	SubjectDID string `json:"subject_did"`
	CID        string `json:"cid"`
}

// LookupQuery holds the subject_did and cid query parameters of read endpoints.
type LookupQuery struct {
	SubjectDID string
	CID        string
}

func lookupFromQuery(r *http.Request) *LookupQuery {
	q := r.URL.Query()
	return &LookupQuery{SubjectDID: q.Get("subject_did"), CID: q.Get("cid")}
}
