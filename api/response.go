package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/go-chi/render"
	"github.com/mitchellh/mapstructure"
)

const (
	StatusOK            = "ok"
	StatusCreated       = "created"
	StatusInputError    = "input_error"
	StatusAuthStale     = "auth_stale"
	StatusUpstreamError = "upstream_error"
	StatusWalletError   = "wallet_error"
	StatusNotFound      = "not_found"
	StatusConflict      = "conflict"
	StatusInternalError = "internal_error"
)

var kindStatuses = map[errors.Kind]struct {
	code   int
	status string
}{
	errors.KindValidation: {http.StatusBadRequest, StatusInputError},
	errors.KindAuthStale:  {http.StatusUnauthorized, StatusAuthStale},
	errors.KindTransient:  {http.StatusBadGateway, StatusUpstreamError},
	errors.KindWallet:     {http.StatusFailedDependency, StatusWalletError},
	errors.KindNotFound:   {http.StatusNotFound, StatusNotFound},
	errors.KindConflict:   {http.StatusConflict, StatusConflict},
	errors.KindInternal:   {http.StatusInternalServerError, StatusInternalError},
}

type Response struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func (e *Response) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func OK(payload any) render.Renderer {
	return &Response{HTTPStatusCode: http.StatusOK, Status: StatusOK, Payload: payload}
}

func Created(payload any) render.Renderer {
	return &Response{HTTPStatusCode: http.StatusCreated, Status: StatusCreated, Payload: payload}
}

// Fail renders err with the status of its kind. Internal error details are not exposed.
// payload, when not nil, carries state that is still valid despite the error.
func Fail(err error, payload any) render.Renderer {
	ks := kindStatuses[errors.KindOf(err)]
	msg := err.Error()
	if errors.KindOf(err) == errors.KindInternal {
		msg = "internal error"
	}
	return &Response{
		Err:            err,
		HTTPStatusCode: ks.code,
		Status:         ks.status,
		Error:          msg,
		Payload:        payload,
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return Fail(errors.Validation("invalid request: %v", err), nil)
}

// DecodePayload decodes the payload of a parsed response into target.
func (e *Response) DecodePayload(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("error configuring payload decoder: %w", err)
	}
	if err := decoder.Decode(e.Payload); err != nil {
		return fmt.Errorf("error decoding payload: %w", err)
	}
	return nil
}

// ParseResponse reads a rendered response body.
func ParseResponse(b []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
