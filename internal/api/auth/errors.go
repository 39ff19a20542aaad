package auth

import "errors"

var (
	errStateMismatch  = errors.New("state does not match the session")
	errMissingIDToken = errors.New("no id_token in token response")
)

type callbackError struct {
	code        string
	description string
}

func (e *callbackError) Error() string {
	if e.description == "" {
		return e.code
	}
	return e.code + ": " + e.description
}
