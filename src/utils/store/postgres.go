package store

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/model"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

type Postgres struct {
	log    *logrus.Entry
	db     *gorm.DB
	wallet string
}

func NewPostgres(ctx context.Context, config *config.Config, walletName string) (self *Postgres, err error) {
	self = new(Postgres)
	self.log = logger.NewSublogger("store-postgres")
	self.wallet = walletName

	self.db, err = model.NewConnection(ctx, config, "lightsync")
	if err != nil {
		return nil, err
	}
	return
}

func (self *Postgres) Append(ctx context.Context, changeset wallet.ChangeSet) (err error) {
	if changeset.IsEmpty() {
		return nil
	}

	buf, err := json.Marshal(changeset)
	if err != nil {
		return
	}

	row := model.WalletChangeset{
		WalletName: self.wallet,
		Data:       string(buf),
	}
	err = self.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return
	}

	self.log.WithField("id", row.Id).WithField("size", len(buf)).Trace("Changeset stored")
	return
}

func (self *Postgres) Aggregate(ctx context.Context) (out wallet.ChangeSet, err error) {
	out = wallet.NewChangeSet()

	rows, err := self.db.WithContext(ctx).
		Model(&model.WalletChangeset{}).
		Where("wallet_name = ?", self.wallet).
		Order("id ASC").
		Rows()
	if err != nil {
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var row model.WalletChangeset
		err = self.db.ScanRows(rows, &row)
		if err != nil {
			return
		}

		var changeset wallet.ChangeSet
		err = json.Unmarshal([]byte(row.Data), &changeset)
		if err != nil {
			return
		}
		out.Merge(changeset)
		count++
	}
	err = rows.Err()
	if err != nil {
		return
	}

	if count == 0 {
		return out, ErrNotFound
	}
	return
}

func (self *Postgres) Close() error {
	db, err := self.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
