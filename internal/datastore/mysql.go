package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/pipeconf/pipeconf/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
}

// dsn builds the go-sql-driver connection string.
func (store *MySQLStore) dsn() string {
	m := store.Settings.Datastore.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// Open connects to the server and migrates the schema.
func (store *MySQLStore) Open() error {
	m := store.Settings.Datastore.MySQL
	db, err := gorm.Open(mysql.Open(store.dsn()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", m.Host),
			logger.String("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open")
	}

	store.DB = db
	return performAutoMigration(db, "MySQL")
}
