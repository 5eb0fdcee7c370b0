package auth

import "fmt"

// tokenError is returned when the request carries no usable token cookie
type tokenError struct {
	found bool
}

func (t *tokenError) Error() string {
	if t.found {
		return "auth: unreadable token cookie"
	}

	return "auth: missing token cookie"
}

// signatureError is returned when the token can't be trusted
type signatureError struct{}

func (*signatureError) Error() string {
	return "auth: invalid token signature or claims"
}

type scopeError struct {
	username string
	scope    string
}

func (s *scopeError) Error() string {
	return fmt.Sprintf("auth: %s is not granted the %s scope", s.username, s.scope)
}
