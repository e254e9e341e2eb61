package vcp

import (
	"errors"
	"fmt"
)

var (
	ErrQueueClosed      = errors.New("queue is closed")
	ErrQueueFull        = errors.New("queue is full")
	ErrAddressParse     = errors.New("invalid server address")
	ErrConnect          = errors.New("failed to connect")
	ErrRetriesExhausted = errors.New("connect retries exhausted")
)

// ConfigError is returned when the configuration cannot be loaded. It is
// fatal: the client cannot run without a target endpoint.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ReadError ends a session after a failed read from the wire.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError ends a session after a failed write to the wire.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
