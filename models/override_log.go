package models

import "time"

type OverrideAction string

const (
	OverrideDecommission OverrideAction = "DECOMMISSION"
	OverrideReactivate   OverrideAction = "REACTIVATE"
	OverrideHold         OverrideAction = "HOLD"
	OverrideRelease      OverrideAction = "RELEASE"
	OverrideRepaired     OverrideAction = "REPAIRED"
)

// OverrideLog records manager overrides of an item's status outside the requisition workflow.
type OverrideLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	EquipmentCode string         `gorm:"size:7;index;not null" json:"equipmentCode"`
	Action        OverrideAction `gorm:"size:20;not null" json:"action"`
	ActorID       string         `gorm:"type:varchar(36)" json:"actorId"`
	ActorName     string         `gorm:"size:255" json:"actorName"`
	Reason        *string        `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
}

func (OverrideLog) TableName() string { return "alf_override_log" }
