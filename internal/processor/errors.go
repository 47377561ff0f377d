// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package processor

import (
	"errors"
	"fmt"

	"github.com/tomtom215/reelsync/internal/models"
)

// ConflictMessage is the error text carried by conflict responses.
const ConflictMessage = "Conflict: server has a newer version of this movie"

// Error codes reported in ActionResponse.ErrorCode.
const (
	CodeValidation    = "validation_failed"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeUnknownAction = "unknown_action"
	CodePersistence   = "persistence_failed"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnknownAction = errors.New("unknown action")
	ErrPersistence   = errors.New("persistence failed")
)

// Coded is implemented by every error the processor returns.
type Coded interface {
	error
	ErrorCode() string
}

// ValidationError rejects an action before the store is touched.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorCode implements Coded.
func (e *ValidationError) ErrorCode() string { return CodeValidation }

// NotFoundError reports a target that does not exist and cannot be created
// lazily, such as rating an item that was never watched.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrorCode implements Coded.
func (e *NotFoundError) ErrorCode() string { return CodeNotFound }

// ConflictError carries the authoritative server copy of a stale write.
type ConflictError struct {
	ServerLastModified float64
	Snapshot           *models.MediaSnapshot
}

func (e *ConflictError) Error() string { return ConflictMessage }

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ErrorCode implements Coded.
func (e *ConflictError) ErrorCode() string { return CodeConflict }

// UnknownActionError is returned at decode time for an unsupported kind.
type UnknownActionError struct {
	Kind string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("Unknown action type: %s", e.Kind)
}

// Is matches ErrUnknownAction.
func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }

// ErrorCode implements Coded.
func (e *UnknownActionError) ErrorCode() string { return CodeUnknownAction }

// PersistenceError wraps a store failure. The action's transaction has been
// discarded when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// ErrorCode implements Coded.
func (e *PersistenceError) ErrorCode() string { return CodePersistence }

// ErrorCode returns the code of err, or CodePersistence for errors that
// carry none.
func ErrorCode(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodePersistence
}
