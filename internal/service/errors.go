package service

import (
	"KeeBridge/internal/crypto"
	"errors"
	"net/http"
)

var (
	ErrUnknownClient        = errors.New("unknown client")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrGeneration           = errors.New("password generation failed")
	ErrHandlerFault         = errors.New("handler fault")
	ErrVaultUnavailable     = errors.New("vault unavailable")
	// ErrEntryNotFound — SetLogin сослался на несуществующую запись.
	ErrEntryNotFound = errors.New("entry not found")
)

// StatusFor сопоставляет ошибку обработки с HTTP‑статусом.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrVaultUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnknownClient), errors.Is(err, ErrAuthenticationFailed):
		return http.StatusForbidden
	case errors.Is(err, ErrEntryNotFound):
		return http.StatusNotFound
	default:
		// ErrDecode, ErrUnknownCommand, crypto.ErrCrypto, ErrGeneration, ErrHandlerFault
		return http.StatusBadRequest
	}
}

// isCallerError — ошибка вызвана запросом клиента, а не сбоем обработчика.
func isCallerError(err error) bool {
	return errors.Is(err, ErrUnknownClient) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, crypto.ErrCrypto) ||
		errors.Is(err, ErrGeneration) ||
		errors.Is(err, ErrVaultUnavailable)
}
