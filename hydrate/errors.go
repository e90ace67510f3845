package hydrate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExpectedOneMissing is matched by every ExpectedOneMissingError.
	ErrExpectedOneMissing = errors.New("expected one related entity, found none")
	// ErrKeyByMismatch is matched by every KeyByMismatchError.
	ErrKeyByMismatch = errors.New("keyBy mismatch")
)

// ExpectedOneMissingError reports a HasOneOrThrow or AttachOneOrThrow relation
// that resolved to zero entities.
type ExpectedOneMissingError struct {
	Key string
}

func (e *ExpectedOneMissingError) Error() string {
	return fmt.Sprintf("relation %q: %s", e.Key, ErrExpectedOneMissing)
}

func (e *ExpectedOneMissingError) Is(target error) bool {
	return target == ErrExpectedOneMissing
}

// KeyByMismatchError reports an Extend between specs with different identities.
type KeyByMismatchError struct {
	Base  []string
	Other []string
}

func (e *KeyByMismatchError) Error() string {
	return fmt.Sprintf("%s: cannot extend [%s] with [%s]",
		ErrKeyByMismatch, strings.Join(e.Base, ", "), strings.Join(e.Other, ", "))
}

func (e *KeyByMismatchError) Is(target error) bool {
	return target == ErrKeyByMismatch
}
