package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/dto"
)

// ErrorHandler renders every error as {"success": false, "message": "..."}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Internal != nil {
			msg = he.Internal.Error()
		} else {
			msg = http.StatusText(code)
		}
	}

	_ = c.JSON(code, dto.ErrorResponse{Success: false, Message: msg})
}
