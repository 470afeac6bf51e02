package auth

import "errors"

// ErrEmailExists indicates a duplicate email address.
var ErrEmailExists = errors.New("email already exists")

// Error codes returned by the service.
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidToken       = "invalid_token"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailExists        = "email_exists"
	CodeUserNotFound       = "user_not_found"
	CodeAuthError          = "auth_error"
)
