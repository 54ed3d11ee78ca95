package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func mustKeyNonce(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	iv, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	return key, iv
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, iv := mustKeyNonce(t)
	// граничные длины: пусто, меньше блока, ровно блок, больше блока
	for _, plain := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte("a"), 16), bytes.Repeat([]byte("b"), 33)} {
		ct, err := EncryptField(plain, key, iv)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if len(ct)%NonceSize != 0 || len(ct) <= len(plain) {
			t.Fatalf("unexpected ciphertext length %d for plain %d", len(ct), len(plain))
		}
		got, err := DecryptField(ct, key, iv)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("round-trip failed: %q != %q", got, plain)
		}
	}
}

func TestEncrypt_Deterministic_ForSameNonce(t *testing.T) {
	key, iv := mustKeyNonce(t)
	a, _ := EncryptField([]byte("fingerprint"), key, iv)
	b, _ := EncryptField([]byte("fingerprint"), key, iv)
	if !bytes.Equal(a, b) {
		t.Fatalf("same key/nonce must give same ciphertext")
	}
	other, _ := NewNonce()
	c, _ := EncryptField([]byte("fingerprint"), key, other)
	if bytes.Equal(a, c) {
		t.Fatalf("different nonce must change ciphertext")
	}
}

func TestDecrypt_FailsClosed(t *testing.T) {
	key, iv := mustKeyNonce(t)
	ct, err := EncryptField([]byte("secret value"), key, iv)
	if err != nil {
		t.Fatal(err)
	}

	// длина не кратна блоку
	if _, err := DecryptField(ct[:len(ct)-1], key, iv); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for truncated input, got %v", err)
	}
	// пустой шифртекст
	if _, err := DecryptField(nil, key, iv); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for empty input, got %v", err)
	}
	// другой ключ: паддинг почти наверняка не сойдётся
	otherKey, _ := NewKey()
	if got, err := DecryptField(ct, otherKey, iv); err == nil && bytes.Equal(got, []byte("secret value")) {
		t.Fatalf("decrypt with wrong key must not yield plaintext")
	}
	// неверные размеры ключа/nonce
	if _, err := EncryptField([]byte("x"), []byte("short"), iv); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for bad key, got %v", err)
	}
	if _, err := DecryptField(ct, key, []byte{1, 2, 3}); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for bad nonce, got %v", err)
	}
}

// flipHighBits возвращает nonce, у которого в каждом байте инвертирован старший бит.
// ASCII‑буквы первого блока превращаются в цепочку ведущих байтов UTF-8.
func flipHighBits(iv []byte) []byte {
	out := make([]byte, len(iv))
	for i, b := range iv {
		out[i] = b ^ 0x80
	}
	return out
}

func TestDecrypt_WrongNonceOfValidSize(t *testing.T) {
	key, iv := mustKeyNonce(t)
	const plain = "https://example.com/login/page"
	ct, err := EncryptField([]byte(plain), key, iv)
	if err != nil {
		t.Fatal(err)
	}
	wrong := flipHighBits(iv)

	// CBC: чужой IV портит только первый блок, паддинг остаётся верным
	got, err := DecryptField(ct, key, wrong)
	if err != nil {
		t.Fatalf("DecryptField is expected to pass padding check, got %v", err)
	}
	if string(got) == plain {
		t.Fatalf("wrong nonce must not yield the original plaintext")
	}

	if _, err := DecryptText(ct, key, wrong); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for wrong nonce, got %v", err)
	}
	text, err := DecryptText(ct, key, iv)
	if err != nil || text != plain {
		t.Fatalf("DecryptText with the right nonce: %q, %v", text, err)
	}
}

func TestDecrypt_InvalidPadding(t *testing.T) {
	key, iv := mustKeyNonce(t)
	// 16 нулевых байт дают два блока; первый блок отдельно расшифруется
	// в нули, последний байт 0x00 — невалидный PKCS7
	ct, err := EncryptField(make([]byte, 16), key, iv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptField(ct[:NonceSize], key, iv); !errors.Is(err, ErrCrypto) {
		t.Fatalf("want ErrCrypto for corrupted padding, got %v", err)
	}
}
