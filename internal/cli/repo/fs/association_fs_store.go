package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName — имя файла ассоциации в каталоге состояния клиента.
const FileName = "association.json"

// ErrNotAssociated — клиент ещё не выполнял associate.
var ErrNotAssociated = errors.New("client is not associated, run associate first")

// Association — сохранённая связь клиента с сервером.
type Association struct {
	ID   string `json:"id"`
	Key  []byte `json:"key"`
	Hash string `json:"hash"`
}

// AssociationFSStore — файловое хранилище ассоциации CLI.
type AssociationFSStore struct {
	Dir string
}

func (s AssociationFSStore) path() (string, error) {
	if s.Dir == "" {
		return "", errors.New("empty client state dir")
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, FileName), nil
}

// Save сохраняет ассоциацию с правами 0600.
func (s AssociationFSStore) Save(a Association) error {
	if a.ID == "" || len(a.Key) == 0 {
		return errors.New("incomplete association")
	}
	p, err := s.path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	// пишем во временный файл и переименовываем, чтобы не оставить половину ключа
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Load читает ассоциацию. Если файла нет, возвращает ErrNotAssociated.
func (s AssociationFSStore) Load() (Association, error) {
	var a Association
	p, err := s.path()
	if err != nil {
		return a, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return a, ErrNotAssociated
	}
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("corrupt %s: %w", FileName, err)
	}
	if a.ID == "" || len(a.Key) == 0 {
		return a, ErrNotAssociated
	}
	return a, nil
}
