package models

import (
	"time"
)

// Типы объектов интеллектуальной собственности, известные реестру.
const (
	IPTypeInvention        = "invention"
	IPTypeUtilityModel     = "utility_model"
	IPTypeIndustrialDesign = "industrial_design"
)

// Catalogue представляет один загруженный файл открытых данных ФИПС.
// Ядро конвейера читает каталог и выставляет только ParsedDate.
type Catalogue struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IPType string `json:"ip_type" gorm:"index;not null"` // например, "invention"

	// Ключ файла в объектном хранилище либо локальный путь
	FileKey string `json:"file_key"`

	PublicationDate *time.Time `json:"publication_date,omitempty"`
	UploadDate      *time.Time `json:"upload_date,omitempty"`

	// NULL означает "ни разу успешно не разобран"
	ParsedDate *time.Time `json:"parsed_date,omitempty"`
}

// TableName задаёт явное имя таблицы для GORM.
func (Catalogue) TableName() string {
	return "catalogues"
}
