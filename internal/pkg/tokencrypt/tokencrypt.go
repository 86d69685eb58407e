// Package tokencrypt encrypts OAuth tokens before they are written to the
// database and decrypts them after loading, using Fernet symmetric tokens.
package tokencrypt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

var (
	ErrMissingKey   = errors.New("tokencrypt: FERNET_KEY is not configured")
	ErrInvalidToken = errors.New("tokencrypt: token could not be decrypted")
)

// Codec holds the primary key (first) plus any older keys still accepted for decryption.
type Codec struct {
	keys []*fernet.Key
}

// NewCodec parses a comma separated list of base64 Fernet keys. The first key encrypts.
func NewCodec(encodedKeys string) (*Codec, error) {
	var keys []*fernet.Key
	for _, raw := range strings.Split(encodedKeys, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		k, err := fernet.DecodeKey(raw)
		if err != nil {
			return nil, fmt.Errorf("tokencrypt: invalid key: %w", err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrMissingKey
	}
	return &Codec{keys: keys}, nil
}

// NewCodecFromEnv reads FERNET_KEY.
func NewCodecFromEnv() (*Codec, error) {
	return NewCodec(env.GetEnv("FERNET_KEY", ""))
}

// Encrypt returns the Fernet token for plain. The empty string stays empty.
func (c *Codec) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plain), c.keys[0])
	if err != nil {
		return "", fmt.Errorf("tokencrypt: encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt reverses Encrypt. Tokens never expire here; expiry is tracked on the integration.
func (c *Codec) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, c.keys)
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}
