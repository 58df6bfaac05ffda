package http

import (
	"errors"
	"net/http"

	"food-order-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string              `json:"error"`
	Details   []domain.FieldError `json:"details,omitempty"`
	ProductID uint64              `json:"productId,omitempty"`
	Available *int64              `json:"available,omitempty"`
	From      domain.OrderStatus  `json:"from,omitempty"`
	To        domain.OrderStatus  `json:"to,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP. Anything outside it
// is logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verr   *domain.ValidationError
		nf     *domain.NotFoundError
		stock  *domain.InsufficientStockError
		trans  *domain.IllegalTransitionError
		closed *domain.ClosedOrderError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Fields})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, errorResponse{Error: nf.Error()})
	case errors.As(err, &stock):
		available := stock.Available
		c.JSON(http.StatusConflict, errorResponse{Error: stock.Error(), ProductID: stock.ProductID, Available: &available})
	case errors.As(err, &trans):
		c.JSON(http.StatusConflict, errorResponse{Error: trans.Error(), From: trans.From, To: trans.To})
	case errors.As(err, &closed):
		c.JSON(http.StatusConflict, errorResponse{Error: closed.Error(), From: closed.Status})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: "order was modified concurrently, reload and retry", Retryable: true})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// writeBindError reports request decoding problems as field errors.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]domain.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, domain.FieldError{Field: fe.Namespace(), Message: "failed " + fe.Tag() + " check"})
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
		return
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
}
