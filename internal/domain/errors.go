package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrPersistence   = errors.New("persistence failure")
	ErrCodeExhausted = errors.New("registration code space exhausted")
)
