package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
)

// handleCreatePurchase records a purchase from a form or JSON body, then
// reloads both collections.
func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	in, err := ParsePurchaseInput(r)
	if err != nil {
		logger.WarnContext(ctx, "Invalid request body", log.FieldError, err)
		BadRequestError("invalid request body").Write(w)
		return
	}
	np, err := in.Parse()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	p, err := s.store.CreatePurchase(ctx, np)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidateReports()
	snap := s.store.FetchAll(ctx)

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(CreatedView{Mode: snap.Mode, Purchase: s.present.purchase(p, p.ResolvedName(snap.Products))}).
		Write(w)
}

// handleDeletePurchase removes a purchase then reloads both collections.
func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id := core.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		BadRequestError("missing purchase id").Write(w)
		return
	}
	if err := s.store.DeletePurchase(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidateReports()
	s.store.FetchAll(r.Context())
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleRefresh reloads both collections, switching mode if needed.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.invalidateReports()
	snap := s.store.FetchAll(r.Context())
	NewJSONResponse().Body(SnapshotView{
		Mode:      snap.Mode,
		Products:  len(snap.Products),
		Purchases: len(snap.Purchases),
	}).Write(w)
}

// invalidateReports drops cached reports once the purchases changed.
func (s *Server) invalidateReports() {
	if inv, ok := s.reports.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// writeStoreError maps validation failures to 422, API failures to 502
// (404 when the API reports the purchase missing) and anything else to 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var verr *core.ValidationError
	var terr *core.TransportError
	switch {
	case errors.As(err, &verr):
		logger.InfoContext(ctx, "Purchase rejected", log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, err)
		ValidationErrorResponse(verr).Write(w)
	case errors.As(err, &terr) && terr.NotFound():
		logger.WarnContext(ctx, "Purchase not found on API", log.FieldError, err)
		NotFoundError("purchase not found").Write(w)
	case errors.Is(err, core.ErrTransport):
		logger.ErrorContext(ctx, "Purchases API request failed", log.FieldErrorType, log.ErrorTypeTransport, log.FieldError, err)
		BadGatewayError(err.Error()).Write(w)
	default:
		logger.ErrorContext(ctx, "Store operation failed", log.FieldErrorType, log.ErrorTypeInternal, log.FieldError, err)
		InternalServerError("internal error").Write(w)
	}
}
