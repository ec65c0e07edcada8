package models

import (
	"time"
)

// Organization представляет юридическое лицо. Хранится всегда исходное,
// ненормализованное название из каталога; нормализация — только поисковая.
type Organization struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name      string `json:"name" gorm:"index;not null"`
	FullName  string `json:"full_name,omitempty"`
	ShortName string `json:"short_name,omitempty"`
}

// TableName задаёт явное имя таблицы для GORM.
func (Organization) TableName() string {
	return "organizations"
}

// Типы правил нормализации названий организаций.
const (
	RuleIgnore  = "ignore"
	RuleReplace = "replace"
)

// NormalizationRule — правило поисковой нормализации названия организации.
// Применяется в порядке возрастания Priority.
type NormalizationRule struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Source      string `json:"source" gorm:"not null"`
	Replacement string `json:"replacement"`
	RuleType    string `json:"rule_type" gorm:"not null;default:ignore"` // ignore | replace
	Priority    int    `json:"priority" gorm:"index;default:100"`
}

// TableName задаёт явное имя таблицы для GORM.
func (NormalizationRule) TableName() string {
	return "normalization_rules"
}
