package presenter

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful ingestion acknowledgment.
func OK(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// Health wraps the health probe response.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "OK"})
}

func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

// Unprocessable is the non-ambiguous failure response for a rejected
// document: validation or persist failed and nothing was staged.
func Unprocessable(c echo.Context) error {
	return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "unable to process data"})
}
