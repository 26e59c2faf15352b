package models

import (
	"database/sql/driver"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// LongText is an unbounded string column that is never used in comparisons.
type LongText string

// Value implements driver.Valuer
func (t LongText) Value() (driver.Value, error) {
	return string(t), nil
}

// Scan implements sql.Scanner
func (t *LongText) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = ""
	case string:
		*t = LongText(v)
	case []byte:
		*t = LongText(v)
	default:
		return fmt.Errorf("LongText: unsupported scan type %T", value)
	}
	return nil
}

// GormDBDataType ensures the correct data type is used for each database driver.
// SQL Server deprecated TEXT, so it gets NVARCHAR(MAX) instead.
func (LongText) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "LONGTEXT"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}
