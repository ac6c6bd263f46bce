package encrypt

import (
	"context"
	"testing"

	"filippo.io/age"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func genKeypair(t *testing.T) (recipient, identity string) {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return id.Recipient().String(), id.String()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	recipient, identity := genKeypair(t)
	fs := afero.NewMemMapFs()
	plaintext := []byte("split payload bytes, arbitrary content")
	require.NoError(t, afero.WriteFile(fs, "/in", plaintext, 0o644))

	e, err := New(fs, recipient, identity)
	require.NoError(t, err)

	ctx := context.Background()
	encPath, err := e.Encrypt(ctx, "/in")
	require.NoError(t, err)
	require.Equal(t, "/in.age", encPath)

	encBytes, err := afero.ReadFile(fs, encPath)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, encBytes)

	decPath, err := e.Decrypt(ctx, encPath)
	require.NoError(t, err)
	require.Equal(t, "/in.age.dec", decPath)

	decBytes, err := afero.ReadFile(fs, decPath)
	require.NoError(t, err)
	require.Equal(t, plaintext, decBytes)
}

func TestDecryptFailsWithWrongIdentity(t *testing.T) {
	recipient, _ := genKeypair(t)
	_, otherIdentity := genKeypair(t)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in", []byte("secret"), 0o644))

	encryptor, err := New(fs, recipient, otherIdentity)
	require.NoError(t, err)

	ctx := context.Background()
	encPath, err := encryptor.Encrypt(ctx, "/in")
	require.NoError(t, err)

	_, err = encryptor.Decrypt(ctx, encPath)
	require.Error(t, err)
}

func TestExtensionIsAge(t *testing.T) {
	e, err := New(afero.NewMemMapFs(), "", "")
	require.NoError(t, err)
	require.Equal(t, "age", e.Extension())
}

func TestNewRejectsMalformedRecipients(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "not-a-valid-recipient", "")
	require.Error(t, err)
}
