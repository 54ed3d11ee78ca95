package service

import (
	"KeeBridge/internal/protocol"
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

const (
	lettersPool = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitsPool  = "0123456789"
	symbolsPool = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// PasswordProfile — набор классов символов и длина генерируемого пароля.
type PasswordProfile struct {
	Length  int
	Letters bool
	Digits  bool
	Symbols bool
}

// DefaultPasswordProfile — профиль по умолчанию.
var DefaultPasswordProfile = PasswordProfile{Length: 20, Letters: true, Digits: true, Symbols: true}

func (p PasswordProfile) pool() string {
	var pool string
	if p.Letters {
		pool += lettersPool
	}
	if p.Digits {
		pool += digitsPool
	}
	if p.Symbols {
		pool += symbolsPool
	}
	return pool
}

// GeneratePassword возвращает случайный пароль и его энтропию в битах.
func GeneratePassword(p PasswordProfile) (string, int, error) {
	pool := p.pool()
	if pool == "" {
		return "", 0, fmt.Errorf("%w: empty character pool", ErrGeneration)
	}
	if p.Length <= 0 {
		return "", 0, fmt.Errorf("%w: invalid length %d", ErrGeneration, p.Length)
	}
	size := big.NewInt(int64(len(pool)))
	out := make([]byte, p.Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		out[i] = pool[n.Int64()]
	}
	bits := int(float64(p.Length) * math.Log2(float64(len(pool))))
	return string(out), bits, nil
}

func (s *Service) generatePassword(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	key, err := s.authenticate(ctx, req, resp)
	if err != nil {
		return err
	}
	password, bits, err := GeneratePassword(s.opts.Password)
	if err != nil {
		return err
	}
	enc := fieldEncrypter{key: key, nonce: resp.Nonce}
	resp.Entries = []protocol.Entry{{
		Name:     enc.do(protocol.GeneratePassword),
		Login:    enc.do(strconv.Itoa(bits)),
		Password: enc.do(password),
		UUID:     enc.do(protocol.GeneratePassword),
	}}
	if enc.err != nil {
		return enc.err
	}
	resp.Success = true
	return nil
}
