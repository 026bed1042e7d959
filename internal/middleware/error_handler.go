package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"group_chat/pkg/errors"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := errors.HTTPStatusFromError(err.Err)

		// детали ошибок хранилища наружу не отдаем
		message := err.Error()
		switch {
		case statusCode == http.StatusInternalServerError:
			message = errors.ReasonInternal
		case errors.KindOf(err.Err) != 0:
			message = errors.Reason(err.Err)
		}

		c.JSON(statusCode, errors.NewAPIError(message, statusCode))
	}
}
