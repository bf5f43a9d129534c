package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remiblancher/ocspkit/internal/api/dto"
	apierrors "github.com/remiblancher/ocspkit/internal/api/errors"
	"github.com/remiblancher/ocspkit/internal/api/service"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// contentTypeResponse is the RFC 6960 media type for OCSP responses.
const contentTypeResponse = "application/ocsp-response"

// OCSPHandler handles OCSP-related HTTP requests.
type OCSPHandler struct {
	service *service.OCSPService
}

// NewOCSPHandler creates a new OCSPHandler.
func NewOCSPHandler(ocspService *service.OCSPService) *OCSPHandler {
	return &OCSPHandler{service: ocspService}
}

// Respond handles the RFC 6960 protocol endpoints: POST /ocsp with a DER
// request body, GET /ocsp/{base64} with the request in the path. Protocol
// failures are answered with OCSP error responses over HTTP 200, never
// with HTTP error codes: standard clients expect a DER payload.
func (h *OCSPHandler) Respond(w http.ResponseWriter, r *http.Request) {
	respDER, signed := h.buildResponse(r)

	w.Header().Set("Content-Type", contentTypeResponse)
	if r.Method == http.MethodGet && signed {
		// RFC 5019 §6.1: successful GET responses may be cached by
		// intermediaries up to the response validity. Error responses
		// must not be.
		maxAge := int(h.service.Validity().Seconds())
		w.Header().Set("Cache-Control",
			fmt.Sprintf("max-age=%d, public, no-transform, must-revalidate", maxAge))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respDER)
}

// buildResponse parses the HTTP request and produces a DER response. The
// boolean reports whether the response is a signed status answer rather
// than an unsigned error response.
func (h *OCSPHandler) buildResponse(r *http.Request) ([]byte, bool) {
	req, err := ocsp.ParseRequestFromHTTP(r)
	if err != nil {
		der, _ := ocsp.NewMalformedResponse()
		return der, false
	}

	der, err := h.service.Respond(r.Context(), req)
	if err != nil {
		der, _ := ocsp.NewInternalErrorResponse()
		return der, false
	}
	return der, true
}

// Query handles POST /api/v1/ocsp/query.
func (h *OCSPHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req dto.OCSPQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
		return
	}

	resp, err := h.service.Query(r.Context(), &req)
	if err != nil {
		status, apiErr := apierrors.MapError(err)
		writeError(w, status, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
