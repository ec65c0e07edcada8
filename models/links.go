package models

// Таблицы связей многие-ко-многим. За один прогон конвейера набор связей
// каждого вида для затронутого IPObject полностью заменяется
// (delete-then-insert), поэтому связи идемпотентны относительно содержимого
// строки каталога.

// AuthorLink связывает IPObject с автором-персоной.
type AuthorLink struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	IPObjectID uint `json:"ip_object_id" gorm:"index:idx_author_links_edge,unique;not null"`
	PersonID   uint `json:"person_id" gorm:"index:idx_author_links_edge,unique;not null"`
}

// TableName задаёт явное имя таблицы для GORM.
func (AuthorLink) TableName() string {
	return "ip_object_authors"
}

// OwnerPersonLink связывает IPObject с правообладателем-персоной.
type OwnerPersonLink struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	IPObjectID uint `json:"ip_object_id" gorm:"index:idx_owner_person_links_edge,unique;not null"`
	PersonID   uint `json:"person_id" gorm:"index:idx_owner_person_links_edge,unique;not null"`
}

// TableName задаёт явное имя таблицы для GORM.
func (OwnerPersonLink) TableName() string {
	return "ip_object_owner_persons"
}

// OwnerOrgLink связывает IPObject с правообладателем-организацией.
type OwnerOrgLink struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	IPObjectID     uint `json:"ip_object_id" gorm:"index:idx_owner_org_links_edge,unique;not null"`
	OrganizationID uint `json:"organization_id" gorm:"index:idx_owner_org_links_edge,unique;not null"`
}

// TableName задаёт явное имя таблицы для GORM.
func (OwnerOrgLink) TableName() string {
	return "ip_object_owner_orgs"
}
