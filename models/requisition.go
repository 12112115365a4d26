// models/requisition.go
package models

import "time"

const RequisitionTable = "alf_requisitions"
const AllocationTable = "alf_allocations"

type RequisitionState string

const (
	StateSubmitted     RequisitionState = "SUBMITTED"
	StateInPreparation RequisitionState = "IN_PREPARATION"
	StateReady         RequisitionState = "READY"
	StateDelivered     RequisitionState = "DELIVERED"
	StateReturned      RequisitionState = "RETURNED"
	StateCancelled     RequisitionState = "CANCELLED"
)

var RequisitionStates = []RequisitionState{
	StateSubmitted, StateInPreparation, StateReady, StateDelivered, StateReturned, StateCancelled,
}

func (s RequisitionState) Valid() bool {
	for _, v := range RequisitionStates {
		if s == v {
			return true
		}
	}
	return false
}

func (s RequisitionState) Terminal() bool { return s == StateReturned || s == StateCancelled }

// AcceptsAllocations is true for the states before delivery.
func (s RequisitionState) AcceptsAllocations() bool {
	return s == StateSubmitted || s == StateInPreparation || s == StateReady
}

type Requisition struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id" bson:"_id"`
	RequesterID    string `gorm:"type:varchar(36);index;not null" json:"requesterId" bson:"requester_id"`
	RequesterName  string `gorm:"size:255" json:"requesterName" bson:"requester_name"`
	RequesterEmail string `gorm:"size:255" json:"requesterEmail" bson:"requester_email"`

	StartDate time.Time `gorm:"not null" json:"startDate" bson:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"endDate" bson:"end_date"`
	Notes     string    `gorm:"type:text" json:"notes" bson:"notes"`

	State RequisitionState `gorm:"size:20;not null;index" json:"state" bson:"state"`

	PreparedByID   *string    `gorm:"type:varchar(36)" json:"preparedById,omitempty" bson:"prepared_by_id"`
	PreparedByName *string    `gorm:"size:255" json:"preparedByName,omitempty" bson:"prepared_by_name"`
	PreparedAt     *time.Time `json:"preparedAt,omitempty" bson:"prepared_at"`
	ReadyAt        *time.Time `json:"readyAt,omitempty" bson:"ready_at"`

	DeliveredByID   *string    `gorm:"type:varchar(36)" json:"deliveredById,omitempty" bson:"delivered_by_id"`
	DeliveredByName *string    `gorm:"size:255" json:"deliveredByName,omitempty" bson:"delivered_by_name"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty" bson:"delivered_at"`

	ReceivedByID   *string    `gorm:"type:varchar(36)" json:"receivedById,omitempty" bson:"received_by_id"`
	ReceivedByName *string    `gorm:"size:255" json:"receivedByName,omitempty" bson:"received_by_name"`
	ReceivedAt     *time.Time `json:"receivedAt,omitempty" bson:"received_at"`

	CancelledByID   *string    `gorm:"type:varchar(36)" json:"cancelledById,omitempty" bson:"cancelled_by_id"`
	CancelledByName *string    `gorm:"size:255" json:"cancelledByName,omitempty" bson:"cancelled_by_name"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty" bson:"cancelled_at"`
	CancelReason    *string    `gorm:"type:text" json:"cancelReason,omitempty" bson:"cancel_reason"`

	CreatedAt time.Time `gorm:"index" json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Allocation links one equipment item to one requisition. The display fields are a snapshot
// taken at allocation time; the equipment record stays the source of truth.
type Allocation struct {
	RequisitionID string `gorm:"type:varchar(36);primaryKey" json:"requisitionId" bson:"requisition_id"`
	EquipmentCode string `gorm:"size:7;primaryKey" json:"equipmentCode" bson:"equipment_code"`

	EquipmentName string    `gorm:"size:200" json:"equipmentName" bson:"equipment_name"`
	UsageCode     string    `gorm:"size:2" json:"usageCode" bson:"usage_code"`
	TypeCode      string    `gorm:"size:2" json:"typeCode" bson:"type_code"`
	StartDate     time.Time `json:"startDate" bson:"start_date"`
	EndDate       time.Time `json:"endDate" bson:"end_date"`

	Description string `gorm:"type:text" json:"description" bson:"description"`
	Notes       string `gorm:"type:text" json:"notes" bson:"notes"`

	// Active stays true while the parent requisition is not terminal.
	Active bool `gorm:"not null;default:true" json:"active" bson:"active"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

func (Requisition) TableName() string { return RequisitionTable }
func (Allocation) TableName() string  { return AllocationTable }
