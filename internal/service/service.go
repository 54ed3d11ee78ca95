package service

import (
	"KeeBridge/internal/association"
	"KeeBridge/internal/metrics"
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/vault"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultUnlockTimeout — предел ожидания попытки открыть хранилище.
const DefaultUnlockTimeout = time.Second

// Notifier — канал уведомлений оператору; не должен блокировать.
type Notifier interface {
	Notify(msg string)
}

// Options — настройки обработки протокола.
type Options struct {
	// ReturnStringFields — возвращать поля "KPH: *" найденных записей.
	ReturnStringFields bool
	// SpecificMatchingOnly — оставлять только самые точные совпадения URL.
	SpecificMatchingOnly bool
	// UnlockOnRequest — любой запрос к закрытому хранилищу ведёт себя как TriggerUnlock.
	UnlockOnRequest bool
	UnlockTimeout   time.Duration
	Password        PasswordProfile
}

// Service — контекст обработки протокола: хранилище, ассоциации и таблица команд.
type Service struct {
	vault    vault.Vault
	assoc    *association.Store
	resolver vault.Resolver
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	opts     Options

	handlers map[string]handlerFunc
	unlockMu sync.Mutex
	setMu    sync.Mutex
}

type handlerFunc func(ctx context.Context, req *protocol.Request, resp *protocol.Response) error

// NewService собирает обработчик протокола. notifier и m могут быть nil.
func NewService(v vault.Vault, store *association.Store, notifier Notifier, m *metrics.Metrics, logger *zap.SugaredLogger, opts Options) *Service {
	if opts.UnlockTimeout <= 0 {
		opts.UnlockTimeout = DefaultUnlockTimeout
	}
	if opts.Password == (PasswordProfile{}) {
		opts.Password = DefaultPasswordProfile
	}
	s := &Service{
		vault:    v,
		assoc:    store,
		resolver: vault.Resolver{Vault: v},
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
	s.handlers = map[string]handlerFunc{
		protocol.TestAssociate:    s.testAssociate,
		protocol.Associate:        s.associate,
		protocol.GetLogins:        s.getLogins,
		protocol.GetLoginsCount:   s.getLoginsCount,
		protocol.GetAllLogins:     s.getAllLogins,
		protocol.SetLogin:         s.setLogin,
		protocol.GeneratePassword: s.generatePassword,
	}
	return s
}

func (s *Service) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}
