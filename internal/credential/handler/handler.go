package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcregistry/internal/credential/models"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/httputil"
	"vcregistry/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, caller id.CallerID, req models.IssueRequest) (*models.CredentialView, error)
	Revoke(ctx context.Context, caller id.CallerID, subjectDID, cid string) (*models.CredentialView, error)
	IsValid(ctx context.Context, subjectDID, cid string) (bool, error)
	GetCredential(ctx context.Context, subjectDID, cid string) (*models.CredentialView, error)
}

// Handler serves the credential endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated read endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/credentials/validity", h.HandleValidity)
	r.Get("/credentials", h.HandleGetCredential)
}

// RegisterIssuer mounts the mutating endpoints. The router must already
// authenticate the caller.
func (h *Handler) RegisterIssuer(r chi.Router) {
	r.Post("/credentials", h.HandleIssue)
	r.Post("/credentials/revoke", h.HandleRevoke)
}

// HandleIssue issues a credential on behalf of the authenticated caller.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	view, err := h.service.Issue(ctx, caller, req.ToModel())
	if err != nil {
		h.logFailure(ctx, "issue credential failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleRevoke revokes a credential. Only its issuer may do so.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeCredentialRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	view, err := h.service.Revoke(ctx, caller, req.SubjectDID, req.CID)
	if err != nil {
		h.logFailure(ctx, "revoke credential failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleValidity answers whether a credential is currently valid.
func (h *Handler) HandleValidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q := lookupFromQuery(r)

	valid, err := h.service.IsValid(ctx, q.SubjectDID, q.CID)
	if err != nil {
		h.logFailure(ctx, "validity check failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ValidityResponse{Valid: valid})
}

// HandleGetCredential returns the stored credential or 404.
func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q := lookupFromQuery(r)

	view, err := h.service.GetCredential(ctx, q.SubjectDID, q.CID)
	if err != nil {
		h.logFailure(ctx, "get credential failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	if view == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "credential not found"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (id.CallerID, bool) {
	ctx := r.Context()
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller, true
}

// logFailure logs server-side failures at error level and client mistakes at
// warn level.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, requestID string) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout, dErrors.CodeUnavailable:
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestID)
	default:
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestID)
	}
}
