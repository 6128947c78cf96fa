package domain

import "errors"

var (
	ErrRecordNotFound = errors.New("payment record not found")
	ErrInvalidRecord  = errors.New("invalid payment record")
)
