package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/nerloop/internal/ner"
)

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeModelError maps model lookup and prediction failures to a status.
func writeModelError(c *echo.Context, err error) error {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return writeError(c, http.StatusBadRequest, "invalid_request_error", reqErr.Msg, reqErr.Param, "")
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ner.ErrNoModel):
		return writeError(c, http.StatusNotFound, "not_found_error", err.Error(), "model", "model_not_found")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
