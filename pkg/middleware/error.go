package middleware

import (
	"swaply-rewards/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := errutil.AsBaseError(err.Err); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		be := errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error"}
		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}
