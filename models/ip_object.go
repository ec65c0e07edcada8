package models

import (
	"time"
)

// IPObject представляет одну запись реестра интеллектуальной собственности
// (изобретение, полезную модель и т.д.). Пара (RegNumber, IPType) — ключ
// дедупликации конвейера; записи никогда не удаляются при разборе.
type IPObject struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RegNumber string `json:"reg_number" gorm:"index:idx_ip_objects_reg_type;not null"`
	IPType    string `json:"ip_type" gorm:"index:idx_ip_objects_reg_type;not null"`

	Name     string `json:"name"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	Claims   string `json:"claims,omitempty" gorm:"type:text"`

	ApplicationNumber string     `json:"application_number,omitempty"`
	ApplicationDate   *time.Time `json:"application_date,omitempty"`
	RegistrationDate  *time.Time `json:"registration_date,omitempty"`
	PublicationDate   *time.Time `json:"publication_date,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`

	// Год создания: из даты заявки, иначе из даты регистрации
	CreationYear int `json:"creation_year,omitempty" gorm:"index"`

	// Правовая охрана ещё действует
	Actual bool `json:"actual" gorm:"index"`

	PublicationURL string `json:"publication_url,omitempty"`
}

// TableName задаёт явное имя таблицы для GORM.
func (IPObject) TableName() string {
	return "ip_objects"
}
