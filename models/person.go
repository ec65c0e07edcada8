package models

import (
	"strings"
	"time"
)

// Person представляет физическое лицо (автора или правообладателя).
// Идентичность — кортеж (LastName, FirstName, MiddleName); после создания
// конвейер записи не изменяет.
type Person struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	LastName   string `json:"last_name" gorm:"index:idx_persons_fio;not null"`
	FirstName  string `json:"first_name" gorm:"index:idx_persons_fio"`
	MiddleName string `json:"middle_name" gorm:"index:idx_persons_fio"`

	Slug string `json:"slug" gorm:"uniqueIndex;not null"`
}

// FullName собирает полное имя из частей. Поле не хранится в БД:
// представление всегда выводится из канонических частей.
func (p Person) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.LastName, p.FirstName, p.MiddleName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// TableName задаёт явное имя таблицы для GORM.
func (Person) TableName() string {
	return "persons"
}
