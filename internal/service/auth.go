package service

import (
	"KeeBridge/internal/association"
	"KeeBridge/internal/bounded"
	"KeeBridge/internal/crypto"
	"KeeBridge/internal/protocol"
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// noRecycleBin подставляется вместо идентификатора корзины, если её нет.
var noRecycleBin = strings.Repeat("0", 32)

// Fingerprint вычисляет отпечаток хранилища: SHA1 от hex корневой группы и корзины.
// Значение не кэшируется.
func (s *Service) Fingerprint(ctx context.Context) (string, error) {
	root, bin, err := s.vault.Identity(ctx)
	if err != nil {
		return "", err
	}
	if bin == "" {
		bin = noRecycleBin
	}
	sum := sha1.Sum([]byte(strings.ToUpper(root) + strings.ToUpper(bin)))
	return hex.EncodeToString(sum[:]), nil
}

// verify проверяет verifier запроса ключом клиента и возвращает этот ключ.
func (s *Service) verify(ctx context.Context, req *protocol.Request, fingerprint string) ([]byte, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("%w: missing Id", ErrUnknownClient)
	}
	key, err := s.assoc.Lookup(ctx, req.ID)
	if errors.Is(err, association.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, req.ID)
	}
	if err != nil {
		return nil, err
	}
	if len(req.Verifier) == 0 {
		return nil, fmt.Errorf("%w: missing Verifier", ErrAuthenticationFailed)
	}
	expected, err := crypto.EncryptField([]byte(fingerprint), key, req.Nonce)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(expected, req.Verifier) != 1 {
		return nil, ErrAuthenticationFailed
	}
	return key, nil
}

// sign ставит в ответ свежий nonce и verifier, зашифрованный ключом клиента.
func sign(resp *protocol.Response, key []byte) error {
	nonce, err := crypto.NewNonce()
	if err != nil {
		return err
	}
	verifier, err := crypto.EncryptField([]byte(resp.Hash), key, nonce)
	if err != nil {
		return err
	}
	resp.Nonce, resp.Verifier = nonce, verifier
	return nil
}

// authenticate — общий пролог команд, кроме Associate.
func (s *Service) authenticate(ctx context.Context, req *protocol.Request, resp *protocol.Response) ([]byte, error) {
	key, err := s.verify(ctx, req, resp.Hash)
	if err != nil {
		return nil, err
	}
	if err := sign(resp, key); err != nil {
		return nil, err
	}
	resp.ID = req.ID
	return key, nil
}

func (s *Service) testAssociate(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	if _, err := s.authenticate(ctx, req, resp); err != nil {
		return err
	}
	resp.Success = true
	return nil
}

func (s *Service) associate(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	if len(req.Key) != crypto.KeySize {
		return fmt.Errorf("%w: key must be %d bytes", crypto.ErrCrypto, crypto.KeySize)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.assoc.Associate(ctx, id, req.Key); err != nil {
		return err
	}
	// ответ подписывается свежим nonce, как и у остальных команд
	if err := sign(resp, req.Key); err != nil {
		return err
	}
	resp.ID = id
	resp.Success = true
	if s.metrics != nil {
		s.metrics.Associations.Inc()
	}
	s.logger.Infow("Client associated", "id", id)
	return nil
}

// TryUnlock пытается открыть хранилище, не дольше UnlockTimeout.
// Одновременно выполняется не больше одной попытки. Брошенная по таймауту
// попытка доводится до конца в фоне, запрос же возвращает ошибку.
func (s *Service) TryUnlock(ctx context.Context) error {
	err := bounded.Do(ctx, s.opts.UnlockTimeout, func(ctx context.Context) error {
		s.unlockMu.Lock()
		defer s.unlockMu.Unlock()
		if s.vault.IsOpen() {
			return nil
		}
		return s.vault.Unlock(context.WithoutCancel(ctx))
	})
	result := "ok"
	switch {
	case errors.Is(err, bounded.ErrAbandoned):
		result = "abandoned"
		s.logger.Warnw("Vault unlock abandoned", "timeout", s.opts.UnlockTimeout)
	case err != nil:
		result = "failed"
		s.logger.Warnw("Vault unlock failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveUnlock(result)
	}
	return err
}
