package presence

import (
	"fmt"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	// RoomCodePrefix starts every room code.
	RoomCodePrefix = "ROOM-"

	// RoomCodeLength is the number of random characters after the prefix.
	RoomCodeLength = 5

	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// maxCodeAttempts bounds regeneration on collision.
	maxCodeAttempts = 10
)

// CodeGenerator returns a candidate room code. Uniqueness is checked by the caller.
type CodeGenerator func() string

// NewCodeGenerator returns a generator of ROOM-XXXXX codes over [0-9A-Z].
func NewCodeGenerator() (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(roomCodeAlphabet, RoomCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create room code generator: %w", err)
	}
	return func() string {
		return RoomCodePrefix + gen()
	}, nil
}

// NormalizeRoomCode trims and upper-cases user input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidRoomCode checks the ROOM-XXXXX format.
func IsValidRoomCode(code string) bool {
	if len(code) != len(RoomCodePrefix)+RoomCodeLength {
		return false
	}
	if !strings.HasPrefix(code, RoomCodePrefix) {
		return false
	}
	for _, c := range code[len(RoomCodePrefix):] {
		if !isCodeChar(c) {
			return false
		}
	}
	return true
}

func isCodeChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}
