package config

import (
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the catalog and purchase/return stores; SalesDB holds the sales
// ledger and its invoice counter. They default to the same database but each
// has its own DSN so either store can be moved without code changes. There is
// never a transaction spanning both handles.
var DB *gorm.DB
var SalesDB *gorm.DB

func ConnectDB() {
	dsn := os.Getenv("DB_URL")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("Failed to connect catalog database")
	}
	DB = db

	salesDSN := os.Getenv("SALES_DB_URL")
	if salesDSN == "" || salesDSN == dsn {
		SalesDB = db
		return
	}

	salesDB, err := gorm.Open(postgres.Open(salesDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("Failed to connect sales database")
	}
	SalesDB = salesDB
}
