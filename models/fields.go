package models

// Fields is a partial update keyed by column name. Column names double as document field
// names, so the same map drives both the SQL and the document store.
type Fields map[string]any

const (
	ColName        = "name"
	ColDescription = "description"
	ColNotes       = "notes"
	ColCondition   = "condition"
	ColUpdatedAt   = "updated_at"

	ColStatus              = "status"
	ColOperational         = "operational"
	ColAcquiredAt          = "acquired_at"
	ColDecommissionedAt    = "decommissioned_at"
	ColLastRequisitionedAt = "last_requisitioned_at"

	ColState           = "state"
	ColPreparedByID    = "prepared_by_id"
	ColPreparedByName  = "prepared_by_name"
	ColPreparedAt      = "prepared_at"
	ColReadyAt         = "ready_at"
	ColDeliveredByID   = "delivered_by_id"
	ColDeliveredByName = "delivered_by_name"
	ColDeliveredAt     = "delivered_at"
	ColReceivedByID    = "received_by_id"
	ColReceivedByName  = "received_by_name"
	ColReceivedAt      = "received_at"
	ColCancelledByID   = "cancelled_by_id"
	ColCancelledByName = "cancelled_by_name"
	ColCancelledAt     = "cancelled_at"
	ColCancelReason    = "cancel_reason"

	ColActive = "active"
)
