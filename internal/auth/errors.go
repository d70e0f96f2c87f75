package auth

import "errors"

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrEscalated    = errors.New("auth: action escalated to ownership")
)
