package ecs

import "errors"

var (
	// ErrInvalidHandle is returned when a handle's generation, kind or slot
	// no longer matches the arena it points into.
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidCast      = errors.New("invalid cast")
	ErrOutOfCapacity    = errors.New("out of capacity")
)
