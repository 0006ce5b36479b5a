package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
)

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Message       string              `json:"message"`
	Errors        map[string][]string `json:"errors,omitempty"`
	EmailVerified *bool               `json:"email_verified,omitempty"`
}

// fail renders err and aborts the chain. Internal errors are logged and
// replaced by a generic message.
func fail(c *gin.Context, err error) {
	e := apperr.As(err)
	body := errorBody{Message: e.Message, Errors: e.Fields}

	switch e.Kind {
	case apperr.KindInternal:
		requestLogger(c).Error("Request failed", zap.Error(err))
		_ = c.Error(err)
		body.Message = "Server Error"
	case apperr.KindUnverified:
		body.EmailVerified = boolPtr(false)
	}
	c.AbortWithStatusJSON(e.Status(), body)
}

// failVerification renders err, flagging bad codes as unverified
func failVerification(c *gin.Context, err error) {
	if apperr.Is(err, apperr.KindBadRequest) {
		e := apperr.As(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: e.Message, EmailVerified: boolPtr(false)})
		return
	}
	fail(c, err)
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorBody{Message: "Not Found"})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, errorBody{Message: "Method Not Allowed"})
}

func boolPtr(b bool) *bool { return &b }
