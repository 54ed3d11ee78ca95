package vault

import (
	"KeeBridge/internal/model"
	"context"
	"regexp"
	"strings"
)

// maxResolveDepth ограничивает вложенность ссылок {REF:...}.
const maxResolveDepth = 8

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolver раскрывает плейсхолдеры в значениях полей записи.
type Resolver struct {
	Vault Vault
}

// Resolve возвращает значение поля key записи e с раскрытыми плейсхолдерами.
// Поддерживаются {TITLE}, {USERNAME}, {URL}, {PASSWORD}, {NOTES}, {S:Имя} и {REF:X@I:UUID}.
// Неизвестные и неразрешимые плейсхолдеры остаются как есть.
func (r Resolver) Resolve(ctx context.Context, e *model.Entry, key string) string {
	return r.expand(ctx, e, e.Get(key), 0)
}

func (r Resolver) expand(ctx context.Context, e *model.Entry, s string, depth int) string {
	if depth >= maxResolveDepth || !strings.Contains(s, "{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		upper := strings.ToUpper(name)
		if f, ok := standardPlaceholders[upper]; ok {
			return r.expand(ctx, e, e.Get(f), depth+1)
		}
		if strings.HasPrefix(upper, "S:") {
			return r.expand(ctx, e, e.Get(name[2:]), depth+1)
		}
		if strings.HasPrefix(upper, "REF:") {
			if v, ok := r.reference(ctx, name[4:], depth); ok {
				return v
			}
		}
		return m
	})
}

var standardPlaceholders = map[string]string{
	"TITLE":    model.TitleField,
	"USERNAME": model.UserNameField,
	"URL":      model.URLField,
	"PASSWORD": model.PasswordField,
	"NOTES":    model.NotesField,
}

var refFields = map[byte]string{
	'T': model.TitleField,
	'U': model.UserNameField,
	'P': model.PasswordField,
	'A': model.URLField,
	'N': model.NotesField,
}

// reference разбирает "X@I:UUID": X — поле, I — поиск по идентификатору.
func (r Resolver) reference(ctx context.Context, ref string, depth int) (string, bool) {
	if r.Vault == nil || len(ref) < 5 || ref[1] != '@' || !strings.EqualFold(ref[2:4], "I:") {
		return "", false
	}
	field, ok := refFields[strings.ToUpper(ref[:1])[0]]
	if !ok {
		return "", false
	}
	target, err := r.Vault.FindEntry(ctx, ref[4:])
	if err != nil {
		return "", false
	}
	return r.expand(ctx, target, target.Get(field), depth+1), true
}
