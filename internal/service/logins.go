package service

import (
	"KeeBridge/internal/crypto"
	"KeeBridge/internal/model"
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/vault"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	// StringFieldPrefix — префикс полей, возвращаемых клиенту.
	StringFieldPrefix = "KPH: "
	// RealmField — поле записи, ограничивающее её одним realm.
	RealmField = StringFieldPrefix + "Realm"
	// PasswordsGroup — группа для записей, созданных через SetLogin.
	PasswordsGroup = "KeeBridge Passwords"
)

// lookup — расшифрованные параметры поиска.
type lookup struct {
	url, submitURL, realm string
	host                  string
}

func (s *Service) decryptLookup(req *protocol.Request, key []byte) (lookup, error) {
	dec := fieldDecrypter{key: key, nonce: req.Nonce}
	l := lookup{
		url:       dec.do("Url", req.URL),
		submitURL: dec.optional("SubmitUrl", req.SubmitURL),
		realm:     dec.optional("Realm", req.Realm),
	}
	if dec.err != nil {
		return lookup{}, dec.err
	}
	l.host = hostOf(l.url)
	return l, nil
}

// hostOf возвращает хост URL; строку без схемы считает хостом с путём.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	if u, err := url.Parse("http://" + raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	return raw
}

// findMatching ищет записи для хоста и его родительских доменов.
// Хост используется как регулярное выражение; некомпилируемый шаблон означает отсутствие совпадений.
func (s *Service) findMatching(ctx context.Context, l lookup) ([]model.Entry, error) {
	seen := make(map[string]bool)
	var found []model.Entry

	for host := l.host; host != ""; {
		list, err := s.vault.Search(ctx, vault.SearchParams{
			Pattern:       fmt.Sprintf("^%s$|/%s/?", host, host),
			InURLs:        true,
			TitleFallback: true,
		})
		switch {
		case errors.Is(err, vault.ErrBadPattern):
			s.logger.Warnw("Search pattern does not compile", "error", err)
		case err != nil:
			return nil, err
		}
		for _, e := range list {
			if !seen[e.UUID] && s.accepts(e, l) {
				seen[e.UUID] = true
				found = append(found, e)
			}
		}
		i := strings.Index(host, ".")
		if i < 0 || !strings.Contains(host[i+1:], ".") {
			break
		}
		host = host[i+1:]
	}
	return found, nil
}

// accepts — фильтр по хосту записи и по realm.
func (s *Service) accepts(e model.Entry, l lookup) bool {
	if realm := e.Get(RealmField); realm != "" && realm != l.realm {
		return false
	}
	h := hostOf(matchTarget(e))
	return h != "" && (l.host == h || strings.HasSuffix(l.host, "."+h))
}

// matchTarget — строка, по которой запись сопоставлялась: URL, а без него заголовок.
func matchTarget(e model.Entry) string {
	if e.URL != "" {
		return e.URL
	}
	return e.Title
}

type ranked struct {
	entry   model.Entry
	login   string
	quality int
}

// rank упорядочивает записи по точности совпадения URL, затем по заголовку и логину.
func rank(entries []ranked, l lookup, specificOnly bool) []ranked {
	submit := strings.TrimSuffix(l.submitURL, "/")
	if submit == "" {
		submit = strings.TrimSuffix(l.url, "/")
	}
	host := strings.TrimSuffix(l.url, "/")
	base := submit
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	for i := range entries {
		entries[i].quality = urlQuality(matchTarget(entries[i].entry), submit, host, base)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.quality != b.quality {
			return a.quality > b.quality
		}
		if a.entry.Title != b.entry.Title {
			return a.entry.Title < b.entry.Title
		}
		return a.login < b.login
	})
	if specificOnly && len(entries) > 0 {
		top := entries[0].quality
		n := 0
		for n < len(entries) && entries[n].quality == top {
			n++
		}
		entries = entries[:n]
	}
	return entries
}

func urlQuality(u, submit, host, base string) int {
	if u == "" {
		return 0
	}
	switch {
	case u == submit:
		return 100
	case strings.HasPrefix(u, submit) && submit != host && base != submit:
		return 99
	case strings.HasPrefix(submit, u) && u != host && u != base:
		return 90
	case u == base:
		return 80
	case strings.HasPrefix(u, base) && u != host:
		return 70
	case u == host:
		return 50
	case strings.HasPrefix(u, host):
		return 40
	case strings.HasPrefix(host, u):
		return 30
	}
	return 0
}

func (s *Service) matching(ctx context.Context, req *protocol.Request, key []byte) ([]ranked, error) {
	l, err := s.decryptLookup(req, key)
	if err != nil {
		return nil, err
	}
	entries, err := s.findMatching(ctx, l)
	if err != nil {
		return nil, err
	}
	out := make([]ranked, 0, len(entries))
	for _, e := range entries {
		out = append(out, ranked{entry: e, login: s.resolver.Resolve(ctx, &e, model.UserNameField)})
	}
	if req.SortSelection || s.opts.SpecificMatchingOnly {
		out = rank(out, l, s.opts.SpecificMatchingOnly)
	}
	return out, nil
}

func (s *Service) getLogins(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	key, err := s.authenticate(ctx, req, resp)
	if err != nil {
		return err
	}
	matches, err := s.matching(ctx, req, key)
	if err != nil {
		return err
	}
	enc := fieldEncrypter{key: key, nonce: resp.Nonce}
	resp.Entries = make([]protocol.Entry, 0, len(matches))
	for _, m := range matches {
		e := m.entry
		pe := protocol.Entry{
			Name:     enc.do(e.Title),
			Login:    enc.do(m.login),
			Password: enc.do(s.resolver.Resolve(ctx, &e, model.PasswordField)),
			UUID:     enc.do(e.UUID),
		}
		if s.opts.ReturnStringFields {
			for _, f := range e.FieldsWithPrefix(StringFieldPrefix) {
				if f.Key == RealmField {
					continue
				}
				pe.StringFields = append(pe.StringFields, protocol.StringField{
					Key:   enc.do(f.Key),
					Value: enc.do(s.resolver.Resolve(ctx, &e, f.Key)),
				})
			}
		}
		resp.Entries = append(resp.Entries, pe)
	}
	if enc.err != nil {
		return enc.err
	}
	resp.Success = true
	return nil
}

func (s *Service) getLoginsCount(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	key, err := s.authenticate(ctx, req, resp)
	if err != nil {
		return err
	}
	matches, err := s.matching(ctx, req, key)
	if err != nil {
		return err
	}
	n := len(matches)
	resp.Count = &n
	resp.Success = true
	return nil
}

func (s *Service) getAllLogins(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	key, err := s.authenticate(ctx, req, resp)
	if err != nil {
		return err
	}
	entries, err := s.vault.Entries(ctx)
	if err != nil {
		return err
	}
	enc := fieldEncrypter{key: key, nonce: resp.Nonce}
	resp.Entries = make([]protocol.Entry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		resp.Entries = append(resp.Entries, protocol.Entry{
			Name:  enc.do(e.Title),
			Login: enc.do(s.resolver.Resolve(ctx, e, model.UserNameField)),
			UUID:  enc.do(e.UUID),
		})
	}
	if enc.err != nil {
		return enc.err
	}
	resp.Success = true
	return nil
}

// setLogin обновляет запись по Uuid или по точному URL либо создаёт новую.
// Сохраняются только присланные значения, без раскрытия плейсхолдеров.
func (s *Service) setLogin(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	key, err := s.authenticate(ctx, req, resp)
	if err != nil {
		return err
	}
	dec := fieldDecrypter{key: key, nonce: req.Nonce}
	rawURL := dec.do("Url", req.URL)
	login := dec.optional("Login", req.Login)
	password := dec.optional("Password", req.Password)
	entryUUID := dec.optional("Uuid", req.UUID)
	if dec.err != nil {
		return dec.err
	}

	s.setMu.Lock()
	defer s.setMu.Unlock()

	if entryUUID != "" {
		e, err := s.vault.FindEntry(ctx, entryUUID)
		// служебная запись настроек клиенту не видна
		if errors.Is(err, vault.ErrNotFound) || strings.EqualFold(entryUUID, vault.AnchorUUID) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entryUUID)
		}
		if err != nil {
			return err
		}
		return s.updateLogin(ctx, resp, e, login, password)
	}

	entries, err := s.vault.Entries(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].URL == rawURL {
			return s.updateLogin(ctx, resp, &entries[i], login, password)
		}
	}

	group, err := s.vault.EnsureGroup(ctx, PasswordsGroup)
	if err != nil {
		return err
	}
	e := &model.Entry{Title: hostOf(rawURL), URL: rawURL, UserName: login, Password: password}
	if err := s.vault.CreateEntry(ctx, group.UUID, e); err != nil {
		return err
	}
	s.logger.Infow("Entry created", "id", req.ID, "entry", e.UUID)
	resp.Success = true
	return nil
}

func (s *Service) updateLogin(ctx context.Context, resp *protocol.Response, e *model.Entry, login, password string) error {
	e.UserName = login
	e.Password = password
	if err := s.vault.UpdateEntry(ctx, e); err != nil {
		return err
	}
	s.logger.Infow("Entry updated", "id", resp.ID, "entry", e.UUID)
	resp.Success = true
	return nil
}

// fieldEncrypter шифрует поля ответа одним ключом и nonce, запоминая первую ошибку.
type fieldEncrypter struct {
	key, nonce []byte
	err        error
}

func (f *fieldEncrypter) do(s string) []byte {
	if f.err != nil {
		return nil
	}
	out, err := crypto.EncryptField([]byte(s), f.key, f.nonce)
	if err != nil {
		f.err = err
	}
	return out
}

type fieldDecrypter struct {
	key, nonce []byte
	err        error
}

func (f *fieldDecrypter) do(name string, b []byte) string {
	if f.err != nil {
		return ""
	}
	out, err := crypto.DecryptText(b, f.key, f.nonce)
	if err != nil {
		f.err = fmt.Errorf("decrypt %s: %w", name, err)
		return ""
	}
	return out
}

func (f *fieldDecrypter) optional(name string, b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return f.do(name, b)
}
