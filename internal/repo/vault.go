package repo

import (
	"KeeBridge/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// metaID — первичный ключ единственной строки model.Meta.
const metaID = 1

// VaultRepository — контракт доступа к таблицам хранилища.
type VaultRepository interface {
	// LoadMeta возвращает идентичность хранилища или gorm.ErrRecordNotFound, если хранилище ещё не создано.
	LoadMeta(ctx context.Context) (*model.Meta, error)
	// CreateVault атомарно создаёт корневую группу, корзину и строку Meta.
	CreateVault(ctx context.Context, meta *model.Meta, root, recycleBin *model.Group) error

	GetGroup(ctx context.Context, uuid string) (*model.Group, error)
	FindGroupByName(ctx context.Context, parentUUID, name string) (*model.Group, error)
	CreateGroup(ctx context.Context, g *model.Group) error

	GetEntry(ctx context.Context, uuid string) (*model.Entry, error)
	CreateEntry(ctx context.Context, e *model.Entry) error
	// SaveEntry обновляет стандартные поля записи и upsert'ит её пользовательские поля в одной транзакции.
	SaveEntry(ctx context.Context, e *model.Entry) error
	// ListEntries возвращает все записи с полями, упорядоченные по заголовку.
	ListEntries(ctx context.Context) ([]model.Entry, error)
}

type vaultRepo struct {
	db *gorm.DB
}

// NewVaultRepository создаёт реализацию репозитория хранилища.
func NewVaultRepository(db *gorm.DB) VaultRepository {
	return &vaultRepo{db: db}
}

func (r *vaultRepo) LoadMeta(ctx context.Context) (*model.Meta, error) {
	var m model.Meta
	if err := r.db.WithContext(ctx).First(&m, metaID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *vaultRepo) CreateVault(ctx context.Context, meta *model.Meta, root, recycleBin *model.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(root).Error; err != nil {
			return err
		}
		if recycleBin != nil {
			if err := tx.Create(recycleBin).Error; err != nil {
				return err
			}
		}
		meta.ID = metaID
		return tx.Create(meta).Error
	})
}

func (r *vaultRepo) GetGroup(ctx context.Context, uuid string) (*model.Group, error) {
	var g model.Group
	if err := r.db.WithContext(ctx).First(&g, "uuid = ?", uuid).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *vaultRepo) FindGroupByName(ctx context.Context, parentUUID, name string) (*model.Group, error) {
	var g model.Group
	err := r.db.WithContext(ctx).
		Where("parent_uuid = ? AND name = ?", parentUUID, name).
		Order("created_at").
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *vaultRepo) CreateGroup(ctx context.Context, g *model.Group) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *vaultRepo) GetEntry(ctx context.Context, uuid string) (*model.Entry, error) {
	var e model.Entry
	if err := r.db.WithContext(ctx).Preload("Fields").First(&e, "uuid = ?", uuid).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *vaultRepo) CreateEntry(ctx context.Context, e *model.Entry) error {
	for i := range e.Fields {
		e.Fields[i].EntryUUID = e.UUID
	}
	// запись и её поля создаются одним вызовом: gorm оборачивает ассоциации в транзакцию
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *vaultRepo) SaveEntry(ctx context.Context, e *model.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Entry{}).
			Where("uuid = ?", e.UUID).
			Updates(map[string]any{
				"group_uuid": e.GroupUUID,
				"title":      e.Title,
				"url":        e.URL,
				"user_name":  e.UserName,
				"password":   e.Password,
				"notes":      e.Notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for i := range e.Fields {
			f := e.Fields[i]
			f.ID = 0
			f.EntryUUID = e.UUID
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "entry_uuid"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&f).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *vaultRepo) ListEntries(ctx context.Context) ([]model.Entry, error) {
	var list []model.Entry
	err := r.db.WithContext(ctx).Preload("Fields").Order("title").Order("uuid").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// IsNotFound сообщает, что запись/группа/мета отсутствует.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
