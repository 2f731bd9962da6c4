// SPDX-License-Identifier: Apache-2.0

package remediation

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Ambiguous characters (I, l, O, 0, 1) are excluded so the secret survives
// being read over the phone during an incident.
const secretCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789!#$%&*+-="

// NewSecret returns a cryptographically random credential of n characters.
func NewSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}

	buf := make([]byte, n)
	charsetLen := big.NewInt(int64(len(secretCharset)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("error reading random source: %w", err)
		}
		buf[i] = secretCharset[idx.Int64()]
	}
	return string(buf), nil
}
