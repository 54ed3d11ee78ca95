package vault

import (
	"KeeBridge/internal/model"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// AnchorUUID — фиксированный идентификатор служебной записи настроек.
	AnchorUUID = "34697A408A5B41C09F36897D623ECB31"
	// AnchorTitle — заголовок служебной записи настроек.
	AnchorTitle = "KeeBridge Settings"
	// PromptTimeoutField — таймаут уведомлений в секундах.
	PromptTimeoutField = "Prompt Timeout"

	// DefaultPromptTimeout — значение, если настройка отсутствует или не парсится.
	DefaultPromptTimeout = 5 * time.Second
)

// AnchorEntry возвращает служебную запись настроек, при create=true создавая её в корневой группе.
// Без create отсутствие записи даёт ErrNotFound.
func AnchorEntry(ctx context.Context, v Vault, create bool) (*model.Entry, error) {
	e, err := v.FindEntry(ctx, AnchorUUID)
	if err == nil || !errors.Is(err, ErrNotFound) || !create {
		return e, err
	}
	root, err := v.RootGroup(ctx)
	if err != nil {
		return nil, err
	}
	e = &model.Entry{UUID: AnchorUUID, Title: AnchorTitle}
	if err := v.CreateEntry(ctx, root.UUID, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AnchorRecords хранит именованные строковые записи в полях служебной записи настроек.
type AnchorRecords struct {
	Vault Vault
}

// GetRecord возвращает значение поля name служебной записи.
func (a AnchorRecords) GetRecord(ctx context.Context, name string) (string, bool, error) {
	e, err := AnchorEntry(ctx, a.Vault, false)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	for _, f := range e.Fields {
		if f.Key == name {
			return f.Value, true, nil
		}
	}
	return "", false, nil
}

// PutRecord записывает поле name, перезаписывая прежнее значение.
func (a AnchorRecords) PutRecord(ctx context.Context, name, value string) error {
	e, err := AnchorEntry(ctx, a.Vault, true)
	if err != nil {
		return err
	}
	e.Set(name, value)
	return a.Vault.UpdateEntry(ctx, e)
}

// PromptTimeout читает таймаут уведомлений из служебной записи.
func PromptTimeout(ctx context.Context, v Vault) time.Duration {
	e, err := AnchorEntry(ctx, v, false)
	if err != nil {
		return DefaultPromptTimeout
	}
	s := strings.TrimSpace(e.Get(PromptTimeoutField))
	if s == "" {
		return DefaultPromptTimeout
	}
	sec, err := strconv.Atoi(s)
	if err != nil || sec <= 0 {
		return DefaultPromptTimeout
	}
	return time.Duration(sec) * time.Second
}
