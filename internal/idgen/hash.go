// Package idgen generates the concrete identifier backing a
// RecordIdKeyRandom record id, base36-encoding crypto/rand entropy.
package idgen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of specified length.
// Matches the algorithm used for bd hash IDs.
func EncodeBase36(data []byte, length int) string {
	// Convert bytes to big integer
	num := new(big.Int).SetBytes(data)

	// Convert to base36
	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	// Build the string in reverse
	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// Reverse the string
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	// Pad with zeros if needed
	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}

	// Truncate to exact length if needed (keep least significant digits)
	if len(str) > length {
		str = str[len(str)-length:]
	}

	return str
}

// randomIDBytes is the amount of entropy pulled for NewRandomKey: 128
// bits, more than the roughly 103 bits a 20-char base36 string holds, so
// EncodeBase36 keeps only the low-order 20 digits of the value.
const randomIDBytes = 16

// NewRandomKey returns a fresh base36 identifier suitable for backing a
// RecordIdKeyRandom record id, drawing its entropy from crypto/rand rather
// than EncodeBase36's usual content-hash callers.
func NewRandomKey() (string, error) {
	buf := make([]byte, randomIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return EncodeBase36(buf, 20), nil
}
