// Package store persists reservations, tags and properties through GORM.
// Every exported operation runs in its own transaction, and conflicts between
// concurrent callers are settled by the database's unique keys rather than by
// read-then-write checks.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/localnerve/portsmith/internal/models"
	"github.com/localnerve/portsmith/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// batchSize bounds IN lists and multi-row inserts so SQL Server's limit of 2100
// bind parameters is never reached
const batchSize = 500

// Data is the caller supplied content of a reservation.
type Data struct {
	Properties map[string]string
	Tags       []string
}

// Reservation is a reserved port with its annotations.
type Reservation struct {
	Port       int               `json:"port"`
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
}

// Patch describes in place changes to a reservation. A nil property value deletes the property.
type Patch struct {
	Properties map[string]*string
	AddTags    []string
	RemoveTags []string
}

// Store is the reservation store.
type Store struct {
	db *gorm.DB
}

// New returns a Store using db. The handle is shared by all operations.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return classify(op, s.db.WithContext(ctx).Transaction(fn))
}

// Exists reports whether port is reserved.
func (s *Store) Exists(ctx context.Context, port int) (bool, error) {
	var count int64
	err := s.transaction(ctx, "exists", func(tx *gorm.DB) error {
		return tx.Model(&models.Reservation{}).Where("port = ?", port).Count(&count).Error
	})
	return count > 0, err
}

// Create reserves port with data. It fails with types.ErrAlreadyReserved when the
// port is taken, including when a concurrent Create wins the race.
func (s *Store) Create(ctx context.Context, port int, data Data) error {
	return s.transaction(ctx, "create", func(tx *gorm.DB) error {
		return insertReservation(tx, port, data)
	})
}

// Replace swaps the tags and properties of a reserved port for data, as if it had been
// released and reserved again. It fails with types.ErrNotReserved when port is free.
func (s *Store) Replace(ctx context.Context, port int, data Data) error {
	return s.transaction(ctx, "replace", func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := touch(tx, port, map[string]interface{}{"created_at": now, "updated_at": now}); err != nil {
			return err
		}
		if err := deleteAnnotations(tx, port); err != nil {
			return err
		}
		return insertAnnotations(tx, port, data)
	})
}

// Release deletes port with its properties and tags. It reports whether a reservation
// was removed; releasing a free port is a no-op.
func (s *Store) Release(ctx context.Context, port int) (bool, error) {
	var released bool
	err := s.transaction(ctx, "release", func(tx *gorm.DB) error {
		if err := deleteAnnotations(tx, port); err != nil {
			return err
		}
		result := tx.Where("port = ?", port).Delete(&models.Reservation{})
		if result.Error != nil {
			return result.Error
		}
		released = result.RowsAffected > 0
		return nil
	})
	return released, err
}

// ApplyPatch updates properties and tags of a reserved port in place.
// Property changes run first, then tag removals, then tag additions. Removing a tag
// deletes every row with that text for the port. Fails with types.ErrNotReserved
// when port is free.
func (s *Store) ApplyPatch(ctx context.Context, port int, patch Patch) error {
	return s.transaction(ctx, "patch", func(tx *gorm.DB) error {
		// Touching the row first locks it for the rest of the transaction
		if err := touch(tx, port, map[string]interface{}{"updated_at": time.Now().UTC()}); err != nil {
			return err
		}

		names := make([]string, 0, len(patch.Properties))
		for name := range patch.Properties {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			value := patch.Properties[name]
			if value == nil {
				if err := tx.Where("port = ? AND name = ?", port, name).Delete(&models.Property{}).Error; err != nil {
					return err
				}
				continue
			}

			property := models.Property{Port: port, Name: name, Value: models.LongText(*value)}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "port"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&property).Error; err != nil {
				return err
			}
		}

		for start := 0; start < len(patch.RemoveTags); start += batchSize {
			batch := patch.RemoveTags[start:min(start+batchSize, len(patch.RemoveTags))]
			if err := tx.Where("port = ? AND tag IN ?", port, batch).Delete(&models.Tag{}).Error; err != nil {
				return err
			}
		}

		return insertTags(tx, port, patch.AddTags)
	})
}

// CreateNext reserves the port chosen by pick from the currently reserved ports.
// Reading the reserved set and inserting the pick happen in one transaction; if a
// concurrent caller takes the same port first the result is types.ErrAlreadyReserved.
func (s *Store) CreateNext(ctx context.Context, pick func(reserved []int) (int, error), data Data) (int, error) {
	var port int
	err := s.transaction(ctx, "create_next", func(tx *gorm.DB) error {
		reserved, err := listPorts(tx)
		if err != nil {
			return err
		}
		if port, err = pick(reserved); err != nil {
			return err
		}
		return insertReservation(tx, port, data)
	})
	if err != nil {
		return 0, err
	}
	return port, nil
}

// ListPorts returns every reserved port in ascending order.
func (s *Store) ListPorts(ctx context.Context) ([]int, error) {
	var ports []int
	err := s.transaction(ctx, "list_ports", func(tx *gorm.DB) error {
		var err error
		ports, err = listPorts(tx)
		return err
	})
	return ports, err
}

// ListTags returns the tags of port in insertion order, duplicates included.
func (s *Store) ListTags(ctx context.Context, port int) ([]string, error) {
	tags := []string{}
	err := s.transaction(ctx, "list_tags", func(tx *gorm.DB) error {
		return tx.Model(&models.Tag{}).Where("port = ?", port).Order("tag_id").Pluck("tag", &tags).Error
	})
	return tags, err
}

// ListProperties returns the properties of port.
func (s *Store) ListProperties(ctx context.Context, port int) (map[string]string, error) {
	properties := map[string]string{}
	err := s.transaction(ctx, "list_properties", func(tx *gorm.DB) error {
		var rows []models.Property
		if err := tx.Where("port = ?", port).Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			properties[row.Name] = string(row.Value)
		}
		return nil
	})
	return properties, err
}

// Get returns a reserved port with its tags and properties, or types.ErrNotReserved.
func (s *Store) Get(ctx context.Context, port int) (*Reservation, error) {
	var found []Reservation
	err := s.transaction(ctx, "get", func(tx *gorm.DB) error {
		var err error
		found, err = loadReservations(tx, []int{port})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.ErrNotReserved
	}
	return &found[0], nil
}

// Details returns the tags and properties of each reserved port in ports, keyed by port.
// Ports that are not reserved are left out.
func (s *Store) Details(ctx context.Context, ports []int) (map[int]Reservation, error) {
	details := make(map[int]Reservation, len(ports))
	err := s.transaction(ctx, "details", func(tx *gorm.DB) error {
		for start := 0; start < len(ports); start += batchSize {
			batch := ports[start:min(start+batchSize, len(ports))]
			found, err := loadReservations(tx, batch)
			if err != nil {
				return err
			}
			for _, r := range found {
				details[r.Port] = r
			}
		}
		return nil
	})
	return details, err
}

func loadReservations(tx *gorm.DB, ports []int) ([]Reservation, error) {
	var rows []models.Reservation
	err := tx.Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tag_id")
	}).Preload("Properties").
		Where("port IN ?", ports).
		Order("port").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Reservation, 0, len(rows))
	for _, row := range rows {
		r := Reservation{
			Port:       row.Port,
			Tags:       make([]string, 0, len(row.Tags)),
			Properties: make(map[string]string, len(row.Properties)),
		}
		for _, tag := range row.Tags {
			r.Tags = append(r.Tags, tag.Tag)
		}
		for _, property := range row.Properties {
			r.Properties[property.Name] = string(property.Value)
		}
		out = append(out, r)
	}
	return out, nil
}

func listPorts(tx *gorm.DB) ([]int, error) {
	ports := []int{}
	err := tx.Model(&models.Reservation{}).Order("port").Pluck("port", &ports).Error
	return ports, err
}

// insertReservation writes the reservation row before anything else so the primary
// key settles races between concurrent creators.
func insertReservation(tx *gorm.DB, port int, data Data) error {
	if err := tx.Create(&models.Reservation{Port: port}).Error; err != nil {
		if isDuplicateKey(err) {
			return types.ErrAlreadyReserved
		}
		return err
	}
	return insertAnnotations(tx, port, data)
}

func insertAnnotations(tx *gorm.DB, port int, data Data) error {
	if len(data.Properties) > 0 {
		names := make([]string, 0, len(data.Properties))
		for name := range data.Properties {
			names = append(names, name)
		}
		slices.Sort(names)

		rows := make([]models.Property, 0, len(names))
		for _, name := range names {
			rows = append(rows, models.Property{Port: port, Name: name, Value: models.LongText(data.Properties[name])})
		}
		if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
			return err
		}
	}
	return insertTags(tx, port, data.Tags)
}

func insertTags(tx *gorm.DB, port int, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.Tag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, models.Tag{Port: port, Tag: tag})
	}
	return tx.CreateInBatches(&rows, batchSize).Error
}

func deleteAnnotations(tx *gorm.DB, port int) error {
	if err := tx.Where("port = ?", port).Delete(&models.Property{}).Error; err != nil {
		return err
	}
	return tx.Where("port = ?", port).Delete(&models.Tag{}).Error
}

// touch updates columns of the reservation row, failing with types.ErrNotReserved when
// there is none. On server databases the update also holds the row lock until commit.
func touch(tx *gorm.DB, port int, columns map[string]interface{}) error {
	result := tx.Model(&models.Reservation{}).Where("port = ?", port).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrNotReserved
	}
	return nil
}
