package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// KeySize — длина общего ключа клиента для AES‑256 (в байтах).
	KeySize = 32
	// NonceSize — nonce совпадает с IV режима CBC и занимает ровно один блок.
	NonceSize = aes.BlockSize
)

// ErrCrypto — ошибка шифрования/расшифровки: неверный ключ, IV, длина шифртекста или паддинг.
var ErrCrypto = errors.New("crypto error")

// NewKey генерирует случайный ключ AES‑256.
func NewKey() ([]byte, error) {
	return random(KeySize)
}

// NewNonce генерирует случайный IV размером в один блок.
func NewNonce() ([]byte, error) {
	return random(NonceSize)
}

func random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncryptField шифрует plain в режиме AES‑CBC с PKCS7‑паддингом.
func EncryptField(plain, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	padded := pad(plain)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptField расшифровывает шифртекст AES‑CBC и снимает PKCS7‑паддинг.
// Неверная длина или паддинг дают ErrCrypto, а не пустые данные.
func DecryptField(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrCrypto, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out)
}

// DecryptText расшифровывает текстовое поле протокола.
// Чужой nonce нужного размера в CBC портит только первый блок и проходит проверку паддинга,
// поэтому результат дополнительно обязан быть валидным UTF-8.
func DecryptText(ciphertext, key, iv []byte) (string, error) {
	out, err := DecryptField(ciphertext, key, iv)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8, wrong key or nonce", ErrCrypto)
	}
	return string(out), nil
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: invalid key size %d", ErrCrypto, len(key))
	}
	if len(iv) != NonceSize {
		return nil, fmt.Errorf("%w: invalid nonce size %d", ErrCrypto, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return block, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
		}
	}
	return b[:len(b)-n], nil
}
