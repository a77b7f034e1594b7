package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

// Changesets stored under <wallet>/cs/<big endian sequence number>
type LevelDB struct {
	log    *logrus.Entry
	db     *leveldb.DB
	prefix []byte

	mtx sync.Mutex
	seq uint64
}

func NewLevelDB(path, walletName string) (self *LevelDB, err error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return
	}
	return newLevelDB(db, walletName)
}

// Not persisted, for tests and dry runs
func NewMemoryLevelDB(walletName string) (self *LevelDB, err error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return
	}
	return newLevelDB(db, walletName)
}

func newLevelDB(db *leveldb.DB, walletName string) (self *LevelDB, err error) {
	self = new(LevelDB)
	self.log = logger.NewSublogger("store-leveldb")
	self.db = db
	self.prefix = []byte(walletName + "/cs/")

	// Continue after the last stored changeset
	iter := db.NewIterator(util.BytesPrefix(self.prefix), nil)
	defer iter.Release()
	if iter.Last() {
		self.seq = binary.BigEndian.Uint64(iter.Key()[len(self.prefix):])
	}
	err = iter.Error()
	return
}

func (self *LevelDB) key(seq uint64) []byte {
	key := make([]byte, len(self.prefix)+8)
	copy(key, self.prefix)
	binary.BigEndian.PutUint64(key[len(self.prefix):], seq)
	return key
}

func (self *LevelDB) Append(ctx context.Context, changeset wallet.ChangeSet) (err error) {
	if changeset.IsEmpty() {
		return nil
	}

	buf, err := json.Marshal(changeset)
	if err != nil {
		return
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	err = ctx.Err()
	if err != nil {
		return
	}

	err = self.db.Put(self.key(self.seq+1), buf, &opt.WriteOptions{Sync: true})
	if err != nil {
		return
	}
	self.seq++

	self.log.WithField("seq", self.seq).WithField("size", len(buf)).Trace("Changeset stored")
	return
}

func (self *LevelDB) Aggregate(ctx context.Context) (out wallet.ChangeSet, err error) {
	out = wallet.NewChangeSet()

	iter := self.db.NewIterator(util.BytesPrefix(self.prefix), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		err = ctx.Err()
		if err != nil {
			return
		}

		var changeset wallet.ChangeSet
		err = json.Unmarshal(iter.Value(), &changeset)
		if err != nil {
			return
		}
		out.Merge(changeset)
		count++
	}
	err = iter.Error()
	if err != nil {
		return
	}

	if count == 0 {
		return out, ErrNotFound
	}
	return
}

func (self *LevelDB) Close() error {
	return self.db.Close()
}
