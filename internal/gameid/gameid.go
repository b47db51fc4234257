// Package gameid mints identifiers for game instances. Every StartGame gets a
// fresh id so renderers can tell a restarted game from the previous one.
package gameid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Prefix marks Diamant game ids in logs and overlay payloads.
const Prefix = "dmt_"

// Base32 alphabet (Crockford)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator produces ids from an optional random reader.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator. A nil reader uses crypto/rand via uuid.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate creates a new game ID using crypto randomness.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new id: a UUIDv7 encoded as 26 base32 characters.
func (g *Generator) Generate() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		// uuid only fails when the reader does; fall back to v4 bits so a
		// game can still start.
		id = uuid.New()
	}
	return Prefix + encodeBase32(id)
}

// encodeBase32 encodes a 128-bit UUID as a 26-character base32 string.
// The value is treated as 130 bits with two leading zero bits.
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)

	// Shift in 5 bits at a time from the least significant end.
	var acc uint32
	var bits uint
	pos := 25
	for i := 15; i >= 0; i-- {
		acc |= uint32(data[i]) << bits
		bits += 8
		for bits >= 5 && pos >= 0 {
			result[pos] = alphabet[acc&0x1f]
			acc >>= 5
			bits -= 5
			pos--
		}
	}
	if pos >= 0 {
		result[pos] = alphabet[acc&0x1f]
	}

	return string(result)
}

// Validate checks if a game ID is valid (prefix + 26 base32 characters).
func Validate(id string) error {
	body, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return fmt.Errorf("game ID must start with %q", Prefix)
	}
	if len(body) != 26 {
		return fmt.Errorf("game ID must have 26 characters after the prefix, got %d", len(body))
	}

	// The top two bits are always zero, so the first character is 0-7.
	if body[0] > '7' {
		return fmt.Errorf("game ID first character must be 0-7, got %c", body[0])
	}

	for i, char := range body {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}

	return nil
}
