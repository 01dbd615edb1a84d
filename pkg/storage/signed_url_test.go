package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "analytics/class-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-1", jobID)
	require.Equal(t, "analytics/class-1.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("export-1", "analytics/class-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewSignedURLSigner("different", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Hour}
	token, _, err := signer.Generate("export-1", "analytics/class-1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "export-1", jobID)
	require.Equal(t, "analytics/class-1.pdf", path)
}
