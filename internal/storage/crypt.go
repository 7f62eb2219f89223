package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted object container formats, identified by an 8-byte magic prefix.
const (
	FormatGCM   = "GCM3NCR0" // magic(8) + salt(16) + nonce(12) + ciphertext + tag(16)
	FormatCBC   = "3NCR0PTD" // magic(8) + sha256(32) + length(8) + salt(16) + iv(16) + ciphertext
	FormatPlain = "plain"
)

const (
	saltLen    = 16
	nonceLen   = 12
	kdfRounds  = 100000
	keyLen     = 32
	magicLen   = 8
	gcmMinimum = magicLen + saltLen + nonceLen + 16
	cbcMinimum = magicLen + sha256.Size + 8 + saltLen + aes.BlockSize
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfRounds, keyLen, sha256.New)
}

// Seal encrypts data with AES-GCM in the GCM3NCR0 container.
func Seal(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("seal: empty password")
	}
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, magicLen+saltLen+nonceLen+len(data)+gcm.Overhead())
	out = append(out, FormatGCM...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Open decrypts data sealed in one of the known containers and reports the
// detected format. Data without a known magic prefix is returned unchanged.
func Open(data []byte, password string) ([]byte, string, error) {
	if len(data) < magicLen {
		return data, FormatPlain, nil
	}
	switch string(data[:magicLen]) {
	case FormatGCM:
		plain, err := openGCM(data, password)
		return plain, FormatGCM, err
	case FormatCBC:
		plain, err := openCBC(data, password)
		return plain, FormatCBC, err
	default:
		return data, FormatPlain, nil
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

func openGCM(data []byte, password string) ([]byte, error) {
	if len(data) < gcmMinimum {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[magicLen : magicLen+saltLen]
	nonce := data[magicLen+saltLen : magicLen+saltLen+nonceLen]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[magicLen+saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

func openCBC(data []byte, password string) ([]byte, error) {
	if len(data) < cbcMinimum {
		return nil, fmt.Errorf("CBC data too short: %d bytes", len(data))
	}
	sum := data[magicLen : magicLen+sha256.Size]
	length := binary.BigEndian.Uint64(data[magicLen+sha256.Size : magicLen+sha256.Size+8])
	body := data[magicLen+sha256.Size+8:]
	if uint64(len(body)) != length {
		return nil, fmt.Errorf("length mismatch: expected %d, got %d", length, len(body))
	}
	if calc := sha256.Sum256(body); !bytes.Equal(sum, calc[:]) {
		return nil, errors.New("hash verification failed")
	}

	salt, iv, ciphertext := body[:saltLen], body[saltLen:saltLen+aes.BlockSize], body[saltLen+aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length: %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
