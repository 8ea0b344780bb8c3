package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/adapters/presenter"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
)

// writeError はドメインエラーを HTTP レスポンスに変換します。
// 業務ルールによる拒否は 400 とし、拒否コードと付加情報を本文に含めます。
func writeError(c *gin.Context, err error) {
	if code, details, ok := presenter.Rejection(err); ok {
		body := gin.H{"error": err.Error(), "message": err.Error(), "code": code}
		for k, v := range details {
			body[k] = v
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return
	}

	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shift.ErrInvalidCourierID),
		errors.Is(err, shift.ErrInvalidShiftID),
		errors.Is(err, shift.ErrInvalidLimit),
		errors.Is(err, courier.ErrInvalidID),
		errors.Is(err, courier.ErrInvalidPageSize),
		errors.Is(err, courier.ErrInvalidPageToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shift.ErrShiftNotFound), errors.Is(err, courier.ErrCourierNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, shift.ErrWriteConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, shift.ErrRosterUnavailable):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
