package model

import (
	"context"
	"fmt"
	"os"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/warp-contracts/lightsync/src/utils/config"
	l "github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/model/sql_migrations"
)

const migrationsTable = "lightsync_migrations"

// Runs migrations and opens the connection used by the store
func NewConnection(ctx context.Context, config *config.Config, applicationName string) (self *gorm.DB, err error) {
	err = Migrate(ctx, &config.Database)
	if err != nil {
		return
	}

	return Connect(ctx, &config.Database, config.Database.User, config.Database.Password, applicationName)
}

func Connect(ctx context.Context, dbConfig *config.Database, username, password, applicationName string) (self *gorm.DB, err error) {
	log := l.NewSublogger("db")

	dsn, cleanup, err := buildDSN(dbConfig, username, password, applicationName)
	if err != nil {
		return
	}
	defer cleanup()

	self, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if dbConfig.PingTimeout < 0 {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbConfig.PingTimeout)
	defer cancel()
	err = db.PingContext(pingCtx)
	return
}

// Certificates from the config are written to temporary files for libpq style options.
// Cleanup removes them, the driver reads them only while connecting.
func buildDSN(dbConfig *config.Database, username, password, applicationName string) (dsn string, cleanup func(), err error) {
	var files []string
	cleanup = func() {
		for _, f := range files {
			os.Remove(f)
		}
	}

	dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		dbConfig.Host,
		dbConfig.Port,
		username,
		password,
		dbConfig.Name,
		dbConfig.SslMode,
		applicationName,
	)

	if dbConfig.ClientKey == "" || dbConfig.ClientCert == "" || dbConfig.CaCert == "" {
		return
	}

	write := func(pattern, content string) (string, error) {
		f, err := os.CreateTemp("", pattern)
		if err != nil {
			return "", err
		}
		defer f.Close()
		files = append(files, f.Name())
		_, err = f.WriteString(content)
		return f.Name(), err
	}

	cert, err := write("cert-*.pem", dbConfig.ClientCert)
	if err != nil {
		return
	}
	key, err := write("key-*.pem", dbConfig.ClientKey)
	if err != nil {
		return
	}
	ca, err := write("ca-*.pem", dbConfig.CaCert)
	if err != nil {
		return
	}

	dsn += fmt.Sprintf(" sslcert=%s sslkey=%s sslrootcert=%s", cert, key, ca)
	return
}

// Applies embedded migrations using the migration user
func Migrate(ctx context.Context, dbConfig *config.Database) (err error) {
	log := l.NewSublogger("db-migrate")

	if dbConfig.MigrationUser == "" || dbConfig.MigrationPassword == "" {
		log.Info("Migration user not set, skipping migrations")
		return
	}

	self, err := Connect(ctx, dbConfig, dbConfig.MigrationUser, dbConfig.MigrationPassword, "lightsync-migration")
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}
	defer db.Close()

	migrate.SetTable(migrationsTable)
	n, err := migrate.Exec(db, "postgres", &migrate.EmbedFileSystemMigrationSource{
		FileSystem: sql_migrations.FS,
		Root:       ".",
	}, migrate.Up)
	if err != nil {
		return
	}

	log.WithField("num", n).Info("Applied migrations")
	return
}
