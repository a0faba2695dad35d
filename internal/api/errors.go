package api

import "errors"

var ErrInvalidRequest = errors.New("invalid_request")

// RequestError is a client error in a prediction request. Param names the
// request field or query parameter at fault, if any.
type RequestError struct {
	Param string
	Msg   string
}

func (e *RequestError) Error() string {
	if e.Param == "" {
		return e.Msg
	}
	return e.Param + ": " + e.Msg
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}
