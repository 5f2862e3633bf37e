package echoapi

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName"`
}

func (r *SignupRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// bindRawBody reads the request body as raw JSON for passthrough to the
// backend, reporting whether it is an array (insert semantics differ).
// An empty body binds to an empty object.
func bindRawBody(ctx echo.Context) (json.RawMessage, bool, error) {
	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, false, errors.Wrap(err, "reading request body")
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), false, nil
	}
	return json.RawMessage(data), trimmed[0] == '[', nil
}
