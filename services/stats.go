package services

import (
	"fmt"

	"gorm.io/gorm"

	"fipsreg/models"
)

// TableCounts возвращает размеры основных таблиц реестра для эндпоинта
// /stats.
func TableCounts(db *gorm.DB) (map[string]int64, error) {
	tables := map[string]interface{}{
		"catalogues":    &models.Catalogue{},
		"ip_objects":    &models.IPObject{},
		"persons":       &models.Person{},
		"organizations": &models.Organization{},
		"author_links":  &models.AuthorLink{},
		"owner_persons": &models.OwnerPersonLink{},
		"owner_orgs":    &models.OwnerOrgLink{},
	}
	counts := make(map[string]int64, len(tables))
	for name, model := range tables {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = count
	}
	return counts, nil
}
