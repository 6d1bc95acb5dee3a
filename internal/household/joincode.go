package household

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// JoinCodeAlphabet leaves out I, O, 0 and 1.
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	JoinCodeLength   = 6
)

// GenerateJoinCode draws each character uniformly from JoinCodeAlphabet.
func GenerateJoinCode() (string, error) {
	size := big.NewInt(int64(len(JoinCodeAlphabet)))
	var b strings.Builder
	b.Grow(JoinCodeLength)
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(JoinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode trims and upper-cases user input.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidJoinCode reports whether code has the right length and alphabet.
func ValidJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(JoinCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
