package model

import "time"

// One persisted wallet changeset, rows of a wallet are merged in id order
type WalletChangeset struct {
	Id         uint64 `gorm:"primaryKey;autoIncrement"`
	WalletName string
	Data       string `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (WalletChangeset) TableName() string {
	return "wallet_changesets"
}
