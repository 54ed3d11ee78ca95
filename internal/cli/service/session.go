package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"KeeBridge/internal/cli/repo/fs"
	"KeeBridge/internal/crypto"
	"KeeBridge/internal/protocol"
)

// ErrBadVerifier — ответ сервера не подтверждает владение ключом ассоциации.
var ErrBadVerifier = errors.New("server verifier mismatch")

// Sender — транспорт протокола.
type Sender interface {
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// AssociationStore — хранилище ассоциации клиента.
type AssociationStore interface {
	Save(a fs.Association) error
	Load() (fs.Association, error)
}

// Login — расшифрованная запись из ответа сервера.
type Login struct {
	Name         string
	Login        string
	Password     string
	UUID         string
	StringFields map[string]string
}

// Session выполняет команды протокола от имени ассоциированного клиента.
type Session struct {
	API   Sender
	Store AssociationStore
}

// NewSession создаёт сессию.
func NewSession(api Sender, store AssociationStore) *Session {
	return &Session{API: api, Store: store}
}

// Associate генерирует новый ключ, регистрирует его на сервере и сохраняет ассоциацию.
func (s *Session) Associate(ctx context.Context, id string) (fs.Association, error) {
	key, err := crypto.NewKey()
	if err != nil {
		return fs.Association{}, err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return fs.Association{}, err
	}
	resp, err := s.API.Send(ctx, &protocol.Request{RequestType: protocol.Associate, ID: id, Key: key, Nonce: nonce})
	if err != nil {
		return fs.Association{}, err
	}
	if !resp.Success {
		return fs.Association{}, fmt.Errorf("associate rejected: %s", resp.Error)
	}
	// первая ассоциация доверяет отпечатку, присланному сервером
	if err := checkVerifier(resp, key, resp.Hash); err != nil {
		return fs.Association{}, err
	}
	a := fs.Association{ID: resp.ID, Key: key, Hash: resp.Hash}
	if err := s.Store.Save(a); err != nil {
		return fs.Association{}, fmt.Errorf("saving association: %w", err)
	}
	return a, nil
}

// TestAssociate проверяет, что сервер всё ещё признаёт сохранённую ассоциацию.
func (s *Session) TestAssociate(ctx context.Context) error {
	_, _, err := s.call(ctx, protocol.TestAssociate, nil)
	return err
}

// GetLogins возвращает записи, подходящие под URL.
func (s *Session) GetLogins(ctx context.Context, url, submitURL, realm string) ([]Login, error) {
	resp, a, err := s.call(ctx, protocol.GetLogins, func(r *protocol.Request, seal sealer) {
		r.URL = seal(url)
		r.SubmitURL = seal(submitURL)
		r.Realm = seal(realm)
	})
	if err != nil {
		return nil, err
	}
	return openEntries(resp, a.Key)
}

// Count возвращает число записей, подходящих под URL.
func (s *Session) Count(ctx context.Context, url, submitURL string) (int, error) {
	resp, _, err := s.call(ctx, protocol.GetLoginsCount, func(r *protocol.Request, seal sealer) {
		r.URL = seal(url)
		r.SubmitURL = seal(submitURL)
	})
	if err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, errors.New("response has no Count")
	}
	return *resp.Count, nil
}

// AllLogins возвращает все записи хранилища без паролей.
func (s *Session) AllLogins(ctx context.Context) ([]Login, error) {
	resp, a, err := s.call(ctx, protocol.GetAllLogins, nil)
	if err != nil {
		return nil, err
	}
	return openEntries(resp, a.Key)
}

// SetLogin сохраняет логин и пароль для URL; uuid задаёт конкретную запись.
func (s *Session) SetLogin(ctx context.Context, url, login, password, uuid string) error {
	_, _, err := s.call(ctx, protocol.SetLogin, func(r *protocol.Request, seal sealer) {
		r.URL = seal(url)
		r.Login = seal(login)
		r.Password = seal(password)
		r.UUID = seal(uuid)
	})
	return err
}

// Generate запрашивает новый пароль и возвращает его вместе с оценкой энтропии в битах.
func (s *Session) Generate(ctx context.Context) (string, int, error) {
	resp, a, err := s.call(ctx, protocol.GeneratePassword, nil)
	if err != nil {
		return "", 0, err
	}
	logins, err := openEntries(resp, a.Key)
	if err != nil {
		return "", 0, err
	}
	if len(logins) != 1 {
		return "", 0, fmt.Errorf("expected one generated entry, got %d", len(logins))
	}
	bits, _ := strconv.Atoi(logins[0].Login)
	return logins[0].Password, bits, nil
}

type sealer func(s string) []byte

func (s *Session) call(ctx context.Context, command string, fill func(*protocol.Request, sealer)) (*protocol.Response, fs.Association, error) {
	a, err := s.Store.Load()
	if err != nil {
		return nil, a, err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, a, err
	}
	verifier, err := crypto.EncryptField([]byte(a.Hash), a.Key, nonce)
	if err != nil {
		return nil, a, err
	}
	req := &protocol.Request{RequestType: command, ID: a.ID, Nonce: nonce, Verifier: verifier}
	if fill != nil {
		var sealErr error
		fill(req, func(v string) []byte {
			if v == "" || sealErr != nil {
				return nil
			}
			b, err := crypto.EncryptField([]byte(v), a.Key, nonce)
			if err != nil {
				sealErr = err
			}
			return b
		})
		if sealErr != nil {
			return nil, a, sealErr
		}
	}

	resp, err := s.API.Send(ctx, req)
	if err != nil {
		return resp, a, err
	}
	if !resp.Success {
		return resp, a, fmt.Errorf("%s failed: %s", command, resp.Error)
	}
	if err := checkVerifier(resp, a.Key, a.Hash); err != nil {
		return resp, a, err
	}
	return resp, a, nil
}

// checkVerifier убеждается, что verifier ответа расшифровывается ключом ассоциации
// в ожидаемый отпечаток хранилища и что сервер прислал тот же отпечаток.
func checkVerifier(resp *protocol.Response, key []byte, hash string) error {
	if len(resp.Nonce) == 0 || len(resp.Verifier) == 0 {
		return fmt.Errorf("%w: response is not signed", ErrBadVerifier)
	}
	if hash == "" || resp.Hash != hash {
		return fmt.Errorf("%w: vault fingerprint changed", ErrBadVerifier)
	}
	plain, err := crypto.DecryptText(resp.Verifier, key, resp.Nonce)
	if err != nil || plain != hash {
		return ErrBadVerifier
	}
	return nil
}

func openEntries(resp *protocol.Response, key []byte) ([]Login, error) {
	out := make([]Login, 0, len(resp.Entries))
	var openErr error
	open := func(b []byte) string {
		if len(b) == 0 || openErr != nil {
			return ""
		}
		plain, err := crypto.DecryptText(b, key, resp.Nonce)
		if err != nil {
			openErr = err
		}
		return plain
	}
	for _, e := range resp.Entries {
		l := Login{Name: open(e.Name), Login: open(e.Login), Password: open(e.Password), UUID: open(e.UUID)}
		for _, f := range e.StringFields {
			if l.StringFields == nil {
				l.StringFields = map[string]string{}
			}
			l.StringFields[open(f.Key)] = open(f.Value)
		}
		out = append(out, l)
	}
	if openErr != nil {
		return nil, fmt.Errorf("decrypt entries: %w", openErr)
	}
	return out, nil
}
