package models

import (
	"encoding/json"
	"time"
)

// OrgConfigID - конфигурация организации хранится одной строкой
const OrgConfigID = 1

type OrgConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OrgConfig) TableName() string {
	return "org_config"
}

// IsValid проверяет, что payload - JSON-объект
func (c *OrgConfig) IsValid() bool {
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(c.Payload), &probe) == nil && probe != nil
}
