// Package encrypt implements age-based encryption for backup splits via
// filippo.io/age.
package encrypt

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/spf13/afero"
)

// Encryptor age-encrypts/decrypts a file against a fixed set of recipients
// and identities, loaded once at construction.
type Encryptor struct {
	fs         afero.Fs
	recipients []age.Recipient
	identities []age.Identity
}

// New constructs an Encryptor from PEM-style age recipient/identity text
// (as produced by `age-keygen`). Either list may be empty if the
// corresponding operation (Encrypt/Decrypt) will never be called.
func New(fs afero.Fs, recipientsText, identitiesText string) (*Encryptor, error) {
	e := &Encryptor{fs: fs}
	if recipientsText != "" {
		recipients, err := age.ParseRecipients(bytes.NewReader([]byte(recipientsText)))
		if err != nil {
			return nil, fmt.Errorf("parse age recipients: %w", err)
		}
		e.recipients = recipients
	}
	if identitiesText != "" {
		identities, err := age.ParseIdentities(bytes.NewReader([]byte(identitiesText)))
		if err != nil {
			return nil, fmt.Errorf("parse age identities: %w", err)
		}
		e.identities = identities
	}
	return e, nil
}

// Extension is the fixed suffix for age-encrypted output.
func (e *Encryptor) Extension() string { return "age" }

// Encrypt writes input's age-encrypted content to input+".age".
func (e *Encryptor) Encrypt(ctx context.Context, input string) (string, error) {
	in, err := e.fs.Open(input)
	if err != nil {
		return "", fmt.Errorf("open input %q: %w", input, err)
	}
	defer in.Close()

	outPath := input + "." + e.Extension()
	out, err := e.fs.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", outPath, err)
	}
	defer out.Close()

	w, err := age.Encrypt(out, e.recipients...)
	if err != nil {
		return "", fmt.Errorf("age encrypt %q: %w", input, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write ciphertext %q: %w", outPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize ciphertext %q: %w", outPath, err)
	}
	return outPath, ctx.Err()
}

// Decrypt reads an age-encrypted file and writes its plaintext to
// input+".dec", used by the encrypt stage's round-trip self-check.
func (e *Encryptor) Decrypt(ctx context.Context, input string) (string, error) {
	in, err := e.fs.Open(input)
	if err != nil {
		return "", fmt.Errorf("open input %q: %w", input, err)
	}
	defer in.Close()

	r, err := age.Decrypt(in, e.identities...)
	if err != nil {
		return "", fmt.Errorf("age decrypt %q: %w", input, err)
	}

	outPath := input + ".dec"
	out, err := e.fs.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write plaintext %q: %w", outPath, err)
	}
	return outPath, ctx.Err()
}
