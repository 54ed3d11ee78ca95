package service

import (
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/vault"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Handle обрабатывает декодированный запрос.
// При недоступном хранилище возвращает (nil, ErrVaultUnavailable): тело ответа не пишется.
// В остальных случаях ответ есть всегда, а ошибка определяет HTTP‑статус через StatusFor.
func (s *Service) Handle(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if (s.opts.UnlockOnRequest || req.TriggerUnlock) && !s.vault.IsOpen() {
		_ = s.TryUnlock(ctx)
	}
	if !s.vault.IsOpen() {
		return nil, ErrVaultUnavailable
	}

	hash, err := s.Fingerprint(ctx)
	if errors.Is(err, vault.ErrClosed) {
		return nil, ErrVaultUnavailable
	}
	resp := protocol.NewResponse(req.RequestType, "")
	if err != nil {
		return s.fail(resp, req, fmt.Errorf("%w: %v", ErrHandlerFault, err))
	}
	resp.Hash = hash

	h, ok := s.handlers[req.RequestType]
	if !ok {
		resp.Error = "Unknown command: " + req.RequestType
		return resp, fmt.Errorf("%w: %s", ErrUnknownCommand, req.RequestType)
	}
	if err := s.call(ctx, h, req, resp); err != nil {
		return s.fail(resp, req, err)
	}
	return resp, nil
}

// call — граница отказа: паника обработчика превращается в ErrHandlerFault.
func (s *Service) call(ctx context.Context, h handlerFunc, req *protocol.Request, resp *protocol.Response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Handler panic", "command", req.RequestType, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerFault, r)
		}
	}()
	return h(ctx, req, resp)
}

func (s *Service) fail(resp *protocol.Response, req *protocol.Request, err error) (*protocol.Response, error) {
	if errors.Is(err, vault.ErrClosed) {
		return nil, ErrVaultUnavailable
	}
	if !isCallerError(err) && !errors.Is(err, ErrHandlerFault) {
		err = fmt.Errorf("%w: %v", ErrHandlerFault, err)
	}
	if errors.Is(err, ErrHandlerFault) {
		s.logger.Errorw("Request failed", "command", req.RequestType, "id", req.ID, "error", err)
		s.notify(fmt.Sprintf("***BUG*** %s: %v", req.RequestType, err))
	} else {
		s.logger.Warnw("Request rejected", "command", req.RequestType, "id", req.ID, "error", err)
	}
	resp.Success = false
	resp.Error = err.Error()
	// отклонённый запрос не получает подтверждения ключа
	resp.Nonce, resp.Verifier = nil, nil
	resp.Entries, resp.Count = nil, nil
	return resp, err
}
