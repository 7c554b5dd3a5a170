package parser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a filter could not be parsed
type ErrorKind int

const (
	KindEmpty ErrorKind = iota
	KindUnsupported
	KindNetwork
	KindCosmetic
)

var (
	// ErrEmpty is matched by parse errors for blank input
	ErrEmpty = errors.New("empty filter")
	// ErrUnsupported is matched by parse errors for comments and filters the engine ignores
	ErrUnsupported = errors.New("unsupported filter")
)

// ParseError describes a filter line that did not produce a usable filter
type ParseError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindEmpty:
		return ErrEmpty.Error()
	case KindUnsupported:
		if e.Reason == "" {
			return ErrUnsupported.Error()
		}
		return fmt.Sprintf("%s: %s", ErrUnsupported, e.Reason)
	case KindNetwork:
		return "invalid network filter: " + e.Reason
	default:
		return "invalid cosmetic filter: " + e.Reason
	}
}

// Is lets errors.Is match the ErrEmpty and ErrUnsupported sentinels
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrEmpty:
		return e.Kind == KindEmpty
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

func networkError(format string, args ...any) *ParseError {
	return &ParseError{Kind: KindNetwork, Reason: fmt.Sprintf(format, args...)}
}

func cosmeticError(format string, args ...any) *ParseError {
	return &ParseError{Kind: KindCosmetic, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(reason string) *ParseError {
	return &ParseError{Kind: KindUnsupported, Reason: reason}
}
