package persistence

import (
	"database/sql"

	"github.com/jinzhu/gorm"
)

// InTransaction runs fn inside db's transaction, opening one when db is not already transactional.
func InTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if IsTransactional(db) {
		return fn(db)
	}
	return db.Transaction(fn)
}

func IsTransactional(db *gorm.DB) bool {
	_, ok := db.CommonDB().(*sql.Tx)
	return ok
}

// ExpectOneRowAffected turns an update that matched no row into onMiss.
func ExpectOneRowAffected(result *gorm.DB, onMiss error) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return onMiss
	}
	return nil
}
