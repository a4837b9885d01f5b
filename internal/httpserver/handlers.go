package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/billing"
	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

type httpHandler struct {
	deps Dependencies
}

type reserveRequest struct {
	Kind string `json:"kind"`
}

type reservationResponse struct {
	ReservationID   string `json:"reservation_id"`
	Kind            string `json:"kind"`
	CounterValue    int64  `json:"counter_value"`
	FormattedNumber string `json:"formatted_number"`
	Status          string `json:"status"`
	DocumentID      string `json:"document_id,omitempty"`
}

type finalizeRequest struct {
	DocumentID string `json:"document_id"`
}

type releaseResponse struct {
	Status       string `json:"status"`
	NumberBurned bool   `json:"number_burned"`
}

type counterResponse struct {
	Kind           string `json:"kind"`
	NextValue      int64  `json:"next_value"`
	PrefixTemplate string `json:"prefix_template"`
	PadWidth       int    `json:"pad_width"`
}

type counterFormatRequest struct {
	PrefixTemplate string `json:"prefix_template"`
	PadWidth       int    `json:"pad_width"`
}

type invoiceRequest struct {
	CustomerID    string          `json:"customer_id"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	IssuedUnixUTC int64           `json:"issued_unix_utc"`
	Notes         string          `json:"notes"`
	Reason        string          `json:"reason"`
}

type offerRequest struct {
	CustomerID     string          `json:"customer_id"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	ValidUntilUnix int64           `json:"valid_until_unix_utc"`
	Notes          string          `json:"notes"`
	Reason         string          `json:"reason"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type auditEntryResponse struct {
	Sequence        int64  `json:"sequence"`
	RecordedUnixUTC int64  `json:"recorded_unix_utc"`
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	Action          string `json:"action"`
	Reason          string `json:"reason,omitempty"`
	SystemAction    bool   `json:"system_action"`
	BeforeSnapshot  string `json:"before_snapshot,omitempty"`
	AfterSnapshot   string `json:"after_snapshot,omitempty"`
	PrevHash        string `json:"prev_hash"`
	Hash            string `json:"hash"`
}

func (handler *httpHandler) handleReserve(ctx *gin.Context) {
	var request reserveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	kind, err := numbering.ParseKind(request.Kind)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	reservation, err := handler.deps.Numbers.Reserve(ctx.Request.Context(), kind)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toReservationResponse(reservation))
}

func (handler *httpHandler) handleFinalize(ctx *gin.Context) {
	var request finalizeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if err := handler.deps.Numbers.Finalize(ctx.Request.Context(), ctx.Param("id"), request.DocumentID); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "finalized"})
}

func (handler *httpHandler) handleRelease(ctx *gin.Context) {
	result, err := handler.deps.Numbers.Release(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, releaseResponse{Status: "released", NumberBurned: result.NumberBurned})
}

func (handler *httpHandler) handlePeekCounter(ctx *gin.Context) {
	kind, err := numbering.ParseKind(ctx.Param("kind"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	state, err := handler.deps.Numbers.Peek(ctx.Request.Context(), kind)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, counterResponse{
		Kind:           state.Kind.String(),
		NextValue:      state.NextValue,
		PrefixTemplate: state.PrefixTemplate,
		PadWidth:       state.PadWidth,
	})
}

func (handler *httpHandler) handleSetCounterFormat(ctx *gin.Context) {
	kind, err := numbering.ParseKind(ctx.Param("kind"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	var request counterFormatRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if err := handler.deps.Numbers.SetFormat(ctx.Request.Context(), kind, request.PrefixTemplate, request.PadWidth); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (handler *httpHandler) handleCreateInvoice(ctx *gin.Context) {
	var request invoiceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	invoice, err := handler.deps.Documents.CreateInvoiceWithNumber(ctx.Request.Context(), billing.Invoice{
		CustomerID:    request.CustomerID,
		Total:         request.Total,
		Currency:      request.Currency,
		IssuedUnixUTC: request.IssuedUnixUTC,
		Notes:         request.Notes,
	}, request.Reason)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, invoice)
}

func (handler *httpHandler) handleUpsertInvoice(ctx *gin.Context) {
	var request invoiceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	invoiceID := ctx.Param("id")
	current, err := handler.deps.Documents.GetInvoice(ctx.Request.Context(), invoiceID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	current.CustomerID = request.CustomerID
	current.Total = request.Total
	current.Currency = request.Currency
	current.IssuedUnixUTC = request.IssuedUnixUTC
	current.Notes = request.Notes
	if _, err := handler.deps.Documents.UpsertInvoice(ctx.Request.Context(), current, request.Reason); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, current)
}

func (handler *httpHandler) handleDeleteInvoice(ctx *gin.Context) {
	var request reasonRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if _, err := handler.deps.Documents.DeleteInvoice(ctx.Request.Context(), ctx.Param("id"), request.Reason); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (handler *httpHandler) handleCreateOffer(ctx *gin.Context) {
	var request offerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	offer, err := handler.deps.Documents.CreateOfferWithNumber(ctx.Request.Context(), billing.Offer{
		CustomerID:     request.CustomerID,
		Total:          request.Total,
		Currency:       request.Currency,
		ValidUntilUnix: request.ValidUntilUnix,
		Notes:          request.Notes,
	}, request.Reason)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, offer)
}

func (handler *httpHandler) handleUpsertOffer(ctx *gin.Context) {
	var request offerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	offerID := ctx.Param("id")
	current, err := handler.deps.Documents.GetOffer(ctx.Request.Context(), offerID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	current.CustomerID = request.CustomerID
	current.Total = request.Total
	current.Currency = request.Currency
	current.ValidUntilUnix = request.ValidUntilUnix
	current.Notes = request.Notes
	if _, err := handler.deps.Documents.UpsertOffer(ctx.Request.Context(), current, request.Reason); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, current)
}

func (handler *httpHandler) handleDeleteOffer(ctx *gin.Context) {
	var request reasonRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if _, err := handler.deps.Documents.DeleteOffer(ctx.Request.Context(), ctx.Param("id"), request.Reason); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (handler *httpHandler) handleExportAudit(ctx *gin.Context) {
	filter := audit.Filter{
		EntityType: ctx.Query("entity_type"),
		EntityID:   ctx.Query("entity_id"),
		Descending: ctx.Query("order") == "desc",
	}
	entries, err := handler.deps.Ledger.Export(ctx.Request.Context(), filter)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	responses := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, toAuditEntryResponse(entry))
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": responses})
}

// handleVerifyAudit surfaces the verification report unmodified so operators
// see the full list of detected mismatches.
func (handler *httpHandler) handleVerifyAudit(ctx *gin.Context) {
	report, err := handler.deps.Ledger.Verify(ctx.Request.Context())
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func toReservationResponse(reservation numbering.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID:   reservation.ReservationID,
		Kind:            reservation.Kind.String(),
		CounterValue:    reservation.CounterValue,
		FormattedNumber: reservation.FormattedNumber,
		Status:          reservation.Status.String(),
		DocumentID:      reservation.DocumentID,
	}
}

func toAuditEntryResponse(entry audit.Entry) auditEntryResponse {
	return auditEntryResponse{
		Sequence:        entry.Sequence,
		RecordedUnixUTC: entry.RecordedUnixUTC,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          entry.Action.Name(),
		Reason:          entry.Action.Reason(),
		SystemAction:    entry.Action.IsSystem(),
		BeforeSnapshot:  entry.BeforeSnapshot.String(),
		AfterSnapshot:   entry.AfterSnapshot.String(),
		PrevHash:        entry.PrevHash,
		Hash:            entry.Hash,
	}
}

func (handler *httpHandler) writeError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		handler.deps.Logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	}
	ctx.JSON(status, gin.H{"error": code})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, audit.ErrEmptyReason):
		return http.StatusBadRequest, "empty_reason"
	case errors.Is(err, numbering.ErrUnknownKind):
		return http.StatusBadRequest, "unknown_kind"
	case errors.Is(err, numbering.ErrInvalidDocumentID):
		return http.StatusBadRequest, "invalid_document_id"
	case errors.Is(err, numbering.ErrInvalidCounterState):
		return http.StatusBadRequest, "invalid_counter_state"
	case errors.Is(err, billing.ErrInvalidEntity):
		return http.StatusBadRequest, "invalid_entity"
	case errors.Is(err, audit.ErrInvalidEntityRef):
		return http.StatusBadRequest, "invalid_entity_reference"
	case errors.Is(err, numbering.ErrUnknownReservation):
		return http.StatusNotFound, "unknown_reservation"
	case errors.Is(err, billing.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found"
	case errors.Is(err, billing.ErrOfferNotFound):
		return http.StatusNotFound, "offer_not_found"
	case errors.Is(err, numbering.ErrDocumentMismatch):
		return http.StatusConflict, "document_mismatch"
	case errors.Is(err, numbering.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, audit.ErrIntegrity):
		return http.StatusInternalServerError, "ledger_integrity_violation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
