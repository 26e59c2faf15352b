package store

import (
	"context"

	"github.com/localnerve/portsmith/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// FindByTags returns the reserved ports, ascending, that carry every tag in tags.
// Each required tag becomes its own bound EXISTS predicate, so tag text never reaches
// the SQL string. No tags matches every reserved port.
func (s *Store) FindByTags(ctx context.Context, tags []string) ([]int, error) {
	required := distinct(tags)

	ports := []int{}
	err := s.transaction(ctx, "find_by_tags", func(tx *gorm.DB) error {
		query := tx.Model(&models.Reservation{}).Clauses(hints.Comment("select", "find_by_tags"))
		for _, tag := range required {
			query = query.Where("EXISTS (?)", tx.Model(&models.Tag{}).
				Select("1").
				Where("reservation_tags.port = reservations.port AND reservation_tags.tag = ?", tag))
		}
		return query.Order("port").Pluck("port", &ports).Error
	})
	if ports == nil {
		ports = []int{}
	}
	return ports, err
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
