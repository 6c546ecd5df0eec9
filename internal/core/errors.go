package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeNotHost      = "not_host"
	ErrCodeBadRequest   = "bad_request"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotHost      = errors.New("not host")
	ErrBadRequest   = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(code, msg string, sentinel error) *CoreError {
	return &CoreError{Code: code, Message: msg, err: sentinel}
}

func roomNotFound() *CoreError {
	return coreError(ErrCodeRoomNotFound, "Room not found", ErrRoomNotFound)
}

func notHost() *CoreError {
	return coreError(ErrCodeNotHost, "Only host can start a round", ErrNotHost)
}

func badRequest(msg string) *CoreError {
	return coreError(ErrCodeBadRequest, msg, ErrBadRequest)
}
