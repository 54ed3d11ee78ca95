package model

import (
	"sort"
	"time"
)

// Стандартные поля записи.
const (
	TitleField    = "Title"
	URLField      = "URL"
	UserNameField = "UserName"
	PasswordField = "Password"
	NotesField    = "Notes"
)

// Entry — запись хранилища: заголовок, URL, логин, пароль и произвольные строковые поля.
type Entry struct {
	UUID      string `gorm:"primaryKey;size:32"` // 16 байт в hex, верхний регистр
	GroupUUID string `gorm:"size:32;not null;index"`

	Title    string
	URL      string `gorm:"column:url"`
	UserName string
	Password string
	Notes    string

	Fields []Field `gorm:"foreignKey:EntryUUID;references:UUID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Field — пользовательское строковое поле записи.
type Field struct {
	ID        uint   `gorm:"primaryKey"`
	EntryUUID string `gorm:"size:32;not null;uniqueIndex:idx_field_entry_key"`
	Key       string `gorm:"not null;uniqueIndex:idx_field_entry_key"`
	Value     string
}

// Get возвращает значение поля по имени (стандартного или пользовательского).
func (e *Entry) Get(key string) string {
	switch key {
	case TitleField:
		return e.Title
	case URLField:
		return e.URL
	case UserNameField:
		return e.UserName
	case PasswordField:
		return e.Password
	case NotesField:
		return e.Notes
	}
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Set записывает пользовательское поле, заменяя существующее значение.
func (e *Entry) Set(key, value string) {
	for i := range e.Fields {
		if e.Fields[i].Key == key {
			e.Fields[i].Value = value
			return
		}
	}
	e.Fields = append(e.Fields, Field{EntryUUID: e.UUID, Key: key, Value: value})
}

// FieldsWithPrefix возвращает пользовательские поля с заданным префиксом, отсортированные по ключу.
func (e *Entry) FieldsWithPrefix(prefix string) []Field {
	var out []Field
	for _, f := range e.Fields {
		if len(f.Key) >= len(prefix) && f.Key[:len(prefix)] == prefix {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
