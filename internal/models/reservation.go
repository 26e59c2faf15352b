package models

import (
	"time"
)

// Reservation is a claimed port. The port number is the primary key and is never generated.
type Reservation struct {
	Port       int `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Tags       []Tag      `gorm:"foreignKey:Port;references:Port;constraint:OnDelete:CASCADE"`
	Properties []Property `gorm:"foreignKey:Port;references:Port;constraint:OnDelete:CASCADE"`
}

// Tag is a free text label on a reservation. The same text may appear more than once per port.
type Tag struct {
	TagID uint64 `gorm:"primaryKey;autoIncrement"`
	Port  int    `gorm:"not null;index:idx_reservation_tags_port_tag,priority:1"`
	Tag   string `gorm:"size:255;not null;index:idx_reservation_tags_port_tag,priority:2;index:idx_reservation_tags_tag"`
}

// Property is a named value on a reservation, unique by name per port.
type Property struct {
	PropertyID uint64   `gorm:"primaryKey;autoIncrement"`
	Port       int      `gorm:"not null;uniqueIndex:idx_reservation_properties_port_name,priority:1"`
	Name       string   `gorm:"size:255;not null;uniqueIndex:idx_reservation_properties_port_name,priority:2"`
	Value      LongText `gorm:"not null"`
}

// TableName overrides the table name for Reservation
func (Reservation) TableName() string {
	return "reservations"
}

// TableName overrides the table name for Tag
func (Tag) TableName() string {
	return "reservation_tags"
}

// TableName overrides the table name for Property
func (Property) TableName() string {
	return "reservation_properties"
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Reservation{},
		&Tag{},
		&Property{},
	}
}
