package model

import "time"

// Group — группа записей. Корневая группа не имеет родителя.
type Group struct {
	UUID       string  `gorm:"primaryKey;size:32"`
	ParentUUID *string `gorm:"size:32;index"`
	Name       string  `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Meta — единственная строка с идентичностью хранилища.
// Корень и корзина меняются только при пересоздании хранилища.
type Meta struct {
	ID             int    `gorm:"primaryKey"`
	RootGroupUUID  string `gorm:"size:32;not null"`
	RecycleBinUUID string `gorm:"size:32"`
	MasterHash     []byte // bcrypt от мастер‑пароля; пусто — пароль не задан
}
