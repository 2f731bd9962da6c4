// SPDX-License-Identifier: Apache-2.0

package remediation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdyer-nuvodia/lockdown/internal/remediation"
)

func TestNewSecret(t *testing.T) {
	t.Run("LengthAndCharset", func(t *testing.T) {
		secret, err := remediation.NewSecret(24)
		require.NoError(t, err)
		assert.Len(t, secret, 24)

		// Ambiguous characters are excluded from the charset.
		assert.NotContains(t, secret, "O")
		assert.False(t, strings.ContainsAny(secret, "Il01"))
	})

	t.Run("NonPositiveLength", func(t *testing.T) {
		_, err := remediation.NewSecret(0)
		assert.Error(t, err)

		_, err = remediation.NewSecret(-5)
		assert.Error(t, err)
	})

	t.Run("SecretsDiffer", func(t *testing.T) {
		a, err := remediation.NewSecret(24)
		require.NoError(t, err)
		b, err := remediation.NewSecret(24)
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})
}
