package auth

import "errors"

// Closed set of client-facing authentication errors. Handlers match these with
// errors.Is and map them to HTTP statuses; anything else is an internal error.
// Failure branches inside one category stay deliberately indistinguishable
// (wrong vs expired vs exhausted code all surface as ErrInvalidChallenge).
var (
	ErrValidation          = errors.New("invalid input")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrAccountLocked       = errors.New("account locked")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidChallenge    = errors.New("invalid code")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
