package pstate

import (
	"crypto/aes"
	"fmt"
)

// EncryptBlock encrypts a single 16-byte block with AES-256 in ECB mode:
// used to obscure confidential-debug log fragments that reference
// persisted-state contents before they leave the trust boundary. ECB is
// appropriate here only because each call encrypts one independent,
// fixed-size block under a key that changes every boot; it is not used for
// any variable-length or multi-block payload.
func EncryptBlock(key [32]byte, block [16]byte) ([16]byte, error) {
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("pstate: aes.NewCipher: %w", err)
	}
	var out [16]byte
	c.Encrypt(out[:], block[:])
	return out, nil
}

// DecryptBlock is the inverse of EncryptBlock.
func DecryptBlock(key [32]byte, block [16]byte) ([16]byte, error) {
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("pstate: aes.NewCipher: %w", err)
	}
	var out [16]byte
	c.Decrypt(out[:], block[:])
	return out, nil
}
