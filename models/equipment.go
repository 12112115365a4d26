// models/equipment.go
package models

import (
	"fmt"
	"time"
)

const EquipmentTable = "alf_equipment"

type EquipmentStatus string

const (
	StatusAvailable      EquipmentStatus = "AVAILABLE"
	StatusInUse          EquipmentStatus = "IN_USE"
	StatusInRepair       EquipmentStatus = "IN_REPAIR"
	StatusDecommissioned EquipmentStatus = "DECOMMISSIONED"
)

var EquipmentStatuses = []EquipmentStatus{StatusAvailable, StatusInUse, StatusInRepair, StatusDecommissioned}

func (s EquipmentStatus) Valid() bool {
	for _, v := range EquipmentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// OperationalCondition says whether an item may circulate, independently of its status.
type OperationalCondition string

const (
	OperOperational    OperationalCondition = "OPERATIONAL"
	OperHeld           OperationalCondition = "HELD"
	OperDecommissioned OperationalCondition = "DECOMMISSIONED"
)

var OperationalConditions = []OperationalCondition{OperOperational, OperHeld, OperDecommissioned}

func (o OperationalCondition) Valid() bool {
	for _, v := range OperationalConditions {
		if o == v {
			return true
		}
	}
	return false
}

type ConditionGrade string

const (
	GradeNew     ConditionGrade = "NEW"
	GradeGood    ConditionGrade = "GOOD"
	GradeUsed    ConditionGrade = "USED"
	GradeDamaged ConditionGrade = "DAMAGED"
	GradeUnsafe  ConditionGrade = "UNSAFE"
)

func (g ConditionGrade) Valid() bool {
	switch g {
	case GradeNew, GradeGood, GradeUsed, GradeDamaged, GradeUnsafe:
		return true
	}
	return false
}

// Equipment is one physical, uniquely coded piece of loanable material.
// Code = UsageCode(2) + TypeCode(2) + Sequence(3), e.g. "0201003".
type Equipment struct {
	Code      string `gorm:"primaryKey;size:7" json:"code" bson:"_id"`
	UsageCode string `gorm:"size:2;not null;index:idx_alf_equipment_category,priority:1" json:"usageCode" bson:"usage_code"`
	TypeCode  string `gorm:"size:2;not null;index:idx_alf_equipment_category,priority:2" json:"typeCode" bson:"type_code"`
	Sequence  int    `gorm:"not null" json:"sequence" bson:"sequence"`

	Name        string `gorm:"size:200;not null" json:"name" bson:"name"`
	Description string `gorm:"type:text" json:"description" bson:"description"`
	Notes       string `gorm:"type:text" json:"notes" bson:"notes"`

	Status      EquipmentStatus      `gorm:"size:20;not null;default:'AVAILABLE';index" json:"status" bson:"status"`
	Operational OperationalCondition `gorm:"size:20;not null;default:'OPERATIONAL'" json:"operational" bson:"operational"`
	Condition   ConditionGrade       `gorm:"size:20;not null;default:'GOOD'" json:"condition" bson:"condition"`

	AcquiredAt          *time.Time `json:"acquiredAt,omitempty" bson:"acquired_at,omitempty"`
	DecommissionedAt    *time.Time `json:"decommissionedAt,omitempty" bson:"decommissioned_at"`
	LastRequisitionedAt *time.Time `gorm:"index" json:"lastRequisitionedAt,omitempty" bson:"last_requisitioned_at"`

	// Version is bumped on every write; writes are conditioned on the version that was read.
	Version int64 `gorm:"not null;default:1" json:"version" bson:"version"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

func (Equipment) TableName() string { return EquipmentTable }

// Allocatable reports whether the item may be attached to a requisition, with the reason when not.
func (e *Equipment) Allocatable() (bool, string) {
	switch {
	case e.Status == StatusDecommissioned:
		return false, "equipment is decommissioned"
	case e.Status != StatusAvailable:
		return false, fmt.Sprintf("equipment is not available (status=%s)", e.Status)
	case e.Operational == OperHeld:
		return false, "equipment is held (operational=HELD)"
	case e.Operational == OperDecommissioned:
		return false, "equipment is decommissioned (operational=DECOMMISSIONED)"
	}
	return true, ""
}

// Decommissioned is true when either flag says the item has been retired.
func (e *Equipment) Decommissioned() bool {
	return e.Status == StatusDecommissioned || e.Operational == OperDecommissioned
}

// FormatCode builds the full item code from its parts.
func FormatCode(usage, typ string, seq int) string {
	return fmt.Sprintf("%s%s%03d", usage, typ, seq)
}
