// Package store is the persistence contract for the lending documents: equipment,
// requisitions and their allocations. db (gorm) and docstore (MongoDB) implement it.
package store

import (
	"context"

	"alforge/models"
)

type EquipmentQuery struct {
	UsageCode string
	TypeCode  string
	Statuses  []models.EquipmentStatus
	// ExcludeOperational drops items whose operational flag is in the set.
	ExcludeOperational []models.OperationalCondition
	ExcludeCodes       []string
	// ExcludeReserved drops items held by an active allocation.
	ExcludeReserved bool
	// ByLastRequisitioned orders never-requisitioned items first, then oldest first.
	// Default order is by code.
	ByLastRequisitioned bool
	Limit               int
}

type RequisitionQuery struct {
	States      []models.RequisitionState
	RequesterID string
	// Page/Size paginate newest first; Size <= 0 returns everything.
	Page int
	Size int
}

type RequisitionPage struct {
	Total int64                `json:"total"`
	Items []models.Requisition `json:"items"`
}

// LendingStore writes are conditional: UpdateEquipment needs the version that was read and
// UpdateRequisition needs the state that was read. A lost race surfaces as apperr Conflict.
type LendingStore interface {
	// Atomic runs fn as one all-or-nothing unit. fn must use the store and ctx it receives.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx LendingStore) error) error

	CreateEquipment(ctx context.Context, e *models.Equipment) error
	GetEquipment(ctx context.Context, code string) (*models.Equipment, error)
	FindEquipment(ctx context.Context, q EquipmentQuery) ([]models.Equipment, error)
	EquipmentCodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	UpdateEquipment(ctx context.Context, code string, version int64, fields models.Fields) error

	CreateRequisition(ctx context.Context, r *models.Requisition) error
	GetRequisition(ctx context.Context, id string) (*models.Requisition, error)
	ListRequisitions(ctx context.Context, q RequisitionQuery) (RequisitionPage, error)
	CountRequisitionsByState(ctx context.Context, requesterID string) (map[models.RequisitionState]int64, error)
	UpdateRequisition(ctx context.Context, id string, from models.RequisitionState, fields models.Fields) error

	CreateAllocation(ctx context.Context, a *models.Allocation) error
	GetAllocation(ctx context.Context, requisitionID, code string) (*models.Allocation, error)
	ListAllocations(ctx context.Context, requisitionID string) ([]models.Allocation, error)
	// FindActiveAllocation returns nil, nil when no active allocation holds the item.
	FindActiveAllocation(ctx context.Context, code string) (*models.Allocation, error)
	UpdateAllocation(ctx context.Context, requisitionID, code string, fields models.Fields) error
	DeleteAllocation(ctx context.Context, requisitionID, code string) error
	CloseAllocations(ctx context.Context, requisitionID string) error
}
