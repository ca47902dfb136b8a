package models

import (
	"strings"
	"time"

	"shift-planner/pkg/calendar"
)

// ScheduleVersion - сохранённая версия графика команды за период.
// Версии только добавляются; последняя по id считается актуальной.
type ScheduleVersion struct {
	ID        uint   `gorm:"primarykey;index:idx_schedule_versions_team_range,priority:4" json:"id"`
	Team      string `gorm:"not null;index:idx_schedule_versions_team_range,priority:1" json:"team"`
	ViewStart string `gorm:"not null;size:10;index:idx_schedule_versions_team_range,priority:2" json:"view_start"`
	ViewEnd   string `gorm:"not null;size:10;index:idx_schedule_versions_team_range,priority:3" json:"view_end"`

	Employees []string                     `gorm:"serializer:json;type:text" json:"employees"`
	Data      map[string]map[string]string `gorm:"serializer:json;type:text" json:"data"`

	Note          string    `gorm:"type:text;not null;default:''" json:"note"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	CreatedByName string    `gorm:"not null;default:''" json:"created_by_name"`
	// Payload - полный снимок запроса на сохранение (JSON)
	Payload string `gorm:"type:text" json:"-"`
}

func (ScheduleVersion) TableName() string {
	return "schedule_versions"
}

// Span возвращает период версии
func (v *ScheduleVersion) Span() (calendar.Span, error) {
	return calendar.ParseSpan(v.ViewStart, v.ViewEnd)
}

// IsValid проверяет валидность данных
func (v *ScheduleVersion) IsValid() bool {
	if strings.TrimSpace(v.Team) == "" {
		return false
	}
	if _, err := v.Span(); err != nil {
		return false
	}
	return true
}
