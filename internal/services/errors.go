package services

import "errors"

var (
	ErrValidation             = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrTherapistNotFound      = errors.New("therapist not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
