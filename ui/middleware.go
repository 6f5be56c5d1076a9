package ui

import (
	"net/http"

	"gogrid/domain/core"
	"gogrid/internal/errors"

	"github.com/gin-gonic/gin"
)

const gridKeyContextKey = "gridKey"

// requireGridKey validates the :key path parameter and stores it on the context
func requireGridKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := core.ParseGridKey(c.Param("key"))
		if err != nil {
			respondError(c, errors.InvalidInput(err.Error()))
			return
		}
		c.Set(gridKeyContextKey, key)
		c.Next()
	}
}

func gridKey(c *gin.Context) core.GridKey {
	if v, ok := c.Get(gridKeyContextKey); ok {
		if key, ok := v.(core.GridKey); ok {
			return key
		}
	}
	return core.GridKey(c.Param("key"))
}

// statusForCode maps application error codes to HTTP statuses
func statusForCode(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeComputeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeChannelClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == "UNKNOWN" {
		code = errors.CodeForDomain(err)
	}
	c.AbortWithStatusJSON(statusForCode(code), gin.H{
		"error": err.Error(),
		"code":  code,
	})
}
