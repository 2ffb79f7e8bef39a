package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecode is returned by codecs for values they cannot decode.
var ErrDecode = errors.New("storage: cannot decode value")

// Codec is the at-rest encoding seam. Decode(Encode(x)) must equal x.
type Codec interface {
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
	Name() string
}

// PlainCodec stores values unchanged.
type PlainCodec struct{}

func (PlainCodec) Encode(plain []byte) ([]byte, error) { return cloneBytes(plain), nil }
func (PlainCodec) Decode(stored []byte) ([]byte, error) { return cloneBytes(stored), nil }
func (PlainCodec) Name() string                         { return "plain" }

// Base64Codec is reversible obfuscation for development builds.
type Base64Codec struct{}

func (Base64Codec) Encode(plain []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plain)))
	base64.StdEncoding.Encode(out, plain)
	return out, nil
}

func (Base64Codec) Decode(stored []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(stored)))
	n, err := base64.StdEncoding.Decode(out, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out[:n], nil
}

func (Base64Codec) Name() string { return "base64" }

// AEADCodec authenticates and encrypts values with XChaCha20-Poly1305. The
// key is derived from a caller secret with HKDF-SHA256.
type AEADCodec struct {
	aead cipher.AEAD
	ad   []byte
}

const minSecretLength = 16

// NewAEADCodec derives a key from secret. info binds the key to a purpose,
// so different namespaces cannot read each other's values.
func NewAEADCodec(secret []byte, info string) (*AEADCodec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("storage: encryption secret must be at least %d bytes", minSecretLength)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("storage: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEADCodec{aead: aead, ad: []byte(info)}, nil
}

func (c *AEADCodec) Encode(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plain, c.ad), nil
}

func (c *AEADCodec) Decode(stored []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(stored) < ns+c.aead.Overhead() {
		return nil, ErrDecode
	}
	plain, err := c.aead.Open(nil, stored[:ns], stored[ns:], c.ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return plain, nil
}

func (c *AEADCodec) Name() string { return "aead" }

// CodecByName builds a codec from configuration.
func CodecByName(name string, secret []byte, info string) (Codec, error) {
	switch name {
	case "", "plain":
		return PlainCodec{}, nil
	case "base64":
		return Base64Codec{}, nil
	case "aead":
		return NewAEADCodec(secret, info)
	default:
		return nil, fmt.Errorf("storage: unknown codec %q", name)
	}
}
