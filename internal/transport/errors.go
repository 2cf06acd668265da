package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vms-inventory/internal/middleware"
	"vms-inventory/internal/notifier"
	"vms-inventory/internal/service"
)

// Error kinds reported in the envelope code
const (
	CodeInvalidOrder      = "INVALID_ORDER"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeStoreFailure      = "STORE_FAILURE"
)

// respondServiceError maps a service error to its stable kind. Messages of
// store and remote failures are only logged.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var stock *service.InsufficientStockError

	switch {
	case errors.As(err, &stock):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, CodeInsufficientStock, "insufficient stock",
			map[string]interface{}{"shortfalls": stock.Shortfalls})
	case errors.Is(err, service.ErrInvalidOrder):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidOrder, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidProduct):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, service.ErrIllegalTransition):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, CodeIllegalTransition, err.Error(), nil)
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound):
		middleware.RespondWithErrorCode(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrProductExists):
		middleware.RespondWithErrorCode(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, notifier.ErrRemoteUnavailable):
		logger.Error("Remote inventory system unavailable", zap.String("operation", op), zap.Error(err))
		middleware.RespondWithErrorCode(w, http.StatusInternalServerError, CodeRemoteUnavailable,
			"inventory system did not acknowledge the change", nil)
	default:
		logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
		middleware.RespondWithErrorCode(w, http.StatusInternalServerError, CodeStoreFailure, "internal error", nil)
	}
}

// pathID reads a positive integer URL parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, middleware.CodeInvalidRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}
