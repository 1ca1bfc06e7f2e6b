package room

import (
	"fmt"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	joinCodeLength   = 6
)

// JoinCodeGenerator produces random join codes.
type JoinCodeGenerator func() string

// NewJoinCodeGenerator returns a generator of 6-letter join codes.
func NewJoinCodeGenerator() (JoinCodeGenerator, error) {
	gen, err := nanoid.CustomASCII(joinCodeAlphabet, joinCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create join code generator: %w", err)
	}
	return JoinCodeGenerator(gen), nil
}

// NormalizeJoinCode returns the case-insensitive lookup key for a join code.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(code)
}
