package auth

import (
	"testing"
	"time"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	j := New("secret", time.Hour)

	token, expiresAt, err := j.Sign("user-42")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	owner, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Owner("user-42"), owner)

	_, err = New("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j := New("secret", time.Minute)
	j.now = func() time.Time { return issued }

	token, _, err := j.Sign("user-1")
	require.NoError(t, err)

	j.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = j.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignRequiresOwner(t *testing.T) {
	t.Parallel()

	_, _, err := New("secret", time.Hour).Sign("")
	assert.ErrorIs(t, err, domain.ErrMissingOwner)
}

func TestFromHeader(t *testing.T) {
	t.Parallel()

	tok, err := FromHeader("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = FromHeader("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic YWRtaW46c2VjcmV0"} {
		_, err := FromHeader(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}
