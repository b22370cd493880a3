package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("course-1", "courses/course-1/thumb.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	subject, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "course-1", subject)
	require.Equal(t, "courses/course-1/thumb.png", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("course-1", "videos/a.mp4")
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	subject, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "course-1", subject)
	require.Equal(t, "videos/a.mp4", path)
}

func TestSignedURLSignerNeverExpiresWithZeroTTL(t *testing.T) {
	signer := NewSignedURLSigner("secret", 0)
	token, expiresAt, err := signer.Generate("course-1", "videos/a.mp4")
	require.NoError(t, err)
	require.True(t, expiresAt.IsZero())
	signer.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }

	_, path, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "videos/a.mp4", path)
}

func TestSignedURLSignerRejectsTamperedPath(t *testing.T) {
	signer := NewSignedURLSigner("secret", 0)
	token, _, err := signer.Generate("course-1", "videos/a.mp4")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	other, _, err := signer.Generate("course-1", "../../etc/passwd")
	require.NoError(t, err)
	parts[2] = strings.Split(other, ".")[2]

	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)
}
