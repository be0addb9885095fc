package errors

import "errors"

// Domain errors
var (
	// Tree errors
	ErrMalformedTree = errors.New("malformed configuration tree")
	ErrNilTree       = errors.New("configuration tree is nil")
	ErrUnbalanced    = errors.New("unbalanced block nesting")

	// Parser errors
	ErrSyntax    = errors.New("syntax error")
	ErrEmptyPath = errors.New("path cannot be empty")

	// Rule errors
	ErrInvalidRule     = errors.New("invalid rule")
	ErrDuplicateRule   = errors.New("rule already registered")
	ErrUnknownRule     = errors.New("unknown rule")
	ErrInvalidSeverity = errors.New("invalid severity")

	// Run errors
	ErrRunNotFound     = errors.New("analysis run not found")
	ErrRunCompleted    = errors.New("analysis run already completed")
	ErrInvalidRunID    = errors.New("invalid analysis run ID")
	ErrEmptyConfigName = errors.New("configuration name cannot be empty")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
	ErrIntegrityFailed       = errors.New("run integrity verification failed")
)
