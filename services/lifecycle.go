package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"alforge/access"
	"alforge/apperr"
	"alforge/models"
	"alforge/notify"
	"alforge/store"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// StaffDirectory lists the e-mails of active managers.
type StaffDirectory interface {
	ListStaffEmails(ctx context.Context) ([]string, error)
}

type LifecycleService struct {
	Store    store.LendingStore
	Notifier notify.Notifier
	Staff    StaffDirectory
	// StaffEmail is the team mailbox copied on every notification.
	StaffEmail string
	Clock      Clock
}

type SubmitInput struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Notes     string    `json:"notes"`
}

type AllocationPatch struct {
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
}

type ListFilter struct {
	States      []models.RequisitionState
	Pending     bool
	RequesterID string
	Page        int
	Size        int
}

func (s *LifecycleService) Submit(ctx context.Context, c access.Caller, in SubmitInput) (*models.Requisition, error) {
	if err := access.Require(c, models.RoleUser); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, apperr.InvalidArgument("start and end dates are required")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, apperr.InvalidArgument("end date is before start date")
	}

	now := s.Clock.now()
	r := &models.Requisition{
		ID:             uuid.NewString(),
		RequesterID:    c.UserID,
		RequesterName:  c.Name,
		RequesterEmail: c.Email,
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
		Notes:          strings.TrimSpace(in.Notes),
		State:          models.StateSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.CreateRequisition(ctx, r); err != nil {
		return nil, err
	}

	msg := s.message(notify.Submitted, r, now)
	msg.Context["notes"] = r.Notes
	staff := s.staffEmails(ctx)
	if s.StaffEmail != "" {
		msg.To = []string{s.StaffEmail}
		msg.Bcc = staff
	} else {
		msg.To = staff
	}
	s.notify(ctx, msg)
	return r, nil
}

// stepHook computes the extra fields written together with the new state. It runs inside
// the transaction after the move was found legal.
type stepHook func(ctx context.Context, tx store.LendingStore, r *models.Requisition, now time.Time) (models.Fields, error)

func (s *LifecycleService) transition(ctx context.Context, c access.Caller, id string, a Action, hook stepHook) (*models.Requisition, time.Time, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, time.Time{}, err
	}
	now := s.Clock.now()
	var out *models.Requisition
	err := s.Store.Atomic(ctx, func(ctx context.Context, tx store.LendingStore) error {
		r, err := tx.GetRequisition(ctx, id)
		if err != nil {
			return err
		}
		next, err := Next(r.State, a)
		if err != nil {
			log.Printf("requisition %s: rejected %s from %s by %s", id, a, r.State, c.UserID)
			return err
		}
		fields := models.Fields{}
		if hook != nil {
			extra, err := hook(ctx, tx, r, now)
			if err != nil {
				return err
			}
			for k, v := range extra {
				fields[k] = v
			}
		}
		fields[models.ColState] = next
		fields[models.ColUpdatedAt] = now
		if err := tx.UpdateRequisition(ctx, id, r.State, fields); err != nil {
			return err
		}
		out, err = tx.GetRequisition(ctx, id)
		return err
	})
	if err != nil {
		return nil, now, err
	}
	return out, now, nil
}

func (s *LifecycleService) BeginPreparation(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	r, _, err := s.transition(ctx, c, id, ActionPrepare, func(_ context.Context, _ store.LendingStore, _ *models.Requisition, now time.Time) (models.Fields, error) {
		return models.Fields{
			models.ColPreparedByID:   c.UserID,
			models.ColPreparedByName: c.Name,
			models.ColPreparedAt:     now,
		}, nil
	})
	return r, err
}

func (s *LifecycleService) MarkReady(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	r, now, err := s.transition(ctx, c, id, ActionReady, func(_ context.Context, _ store.LendingStore, _ *models.Requisition, now time.Time) (models.Fields, error) {
		return models.Fields{models.ColReadyAt: now}, nil
	})
	if err != nil {
		return nil, err
	}
	msg := s.requesterMessage(notify.Ready, r, now)
	msg.Context["preparedBy"] = deref(r.PreparedByName, c.Name)
	s.notify(ctx, msg)
	return r, nil
}

func (s *LifecycleService) RevertToPreparation(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	r, _, err := s.transition(ctx, c, id, ActionRevert, nil)
	return r, err
}

// Deliver hands every allocated item out. Each item is checked again at this point and
// any failure leaves the requisition and all items untouched.
func (s *LifecycleService) Deliver(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	r, _, err := s.transition(ctx, c, id, ActionDeliver, func(ctx context.Context, tx store.LendingStore, r *models.Requisition, now time.Time) (models.Fields, error) {
		allocs, err := tx.ListAllocations(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if len(allocs) == 0 {
			return nil, apperr.InvalidArgument("requisition has no allocated equipment")
		}
		since := r.StartDate
		if since.IsZero() {
			since = now
		}
		for _, a := range allocs {
			e, err := tx.GetEquipment(ctx, a.EquipmentCode)
			if err != nil {
				return nil, err
			}
			if ok, why := e.Allocatable(); !ok {
				return nil, apperr.Unavailable("%s: %s", e.Code, why)
			}
			if err := tx.UpdateEquipment(ctx, e.Code, e.Version, models.Fields{
				models.ColStatus:              models.StatusInUse,
				models.ColLastRequisitionedAt: since,
				models.ColUpdatedAt:           now,
			}); err != nil {
				return nil, err
			}
		}
		return models.Fields{
			models.ColDeliveredByID:   c.UserID,
			models.ColDeliveredByName: c.Name,
			models.ColDeliveredAt:     now,
		}, nil
	})
	return r, err
}

// Return brings the items back: decommissioned items stay as they are, held items go to
// repair and everything else is available again.
func (s *LifecycleService) Return(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	r, now, err := s.transition(ctx, c, id, ActionReturn, func(ctx context.Context, tx store.LendingStore, r *models.Requisition, now time.Time) (models.Fields, error) {
		allocs, err := tx.ListAllocations(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range allocs {
			e, err := tx.GetEquipment(ctx, a.EquipmentCode)
			if err != nil {
				return nil, err
			}
			var fields models.Fields
			switch {
			case e.Decommissioned():
				continue
			case e.Operational == models.OperHeld:
				fields = models.Fields{models.ColStatus: models.StatusInRepair}
			default:
				fields = models.Fields{
					models.ColStatus:              models.StatusAvailable,
					models.ColLastRequisitionedAt: now,
				}
			}
			fields[models.ColUpdatedAt] = now
			if err := tx.UpdateEquipment(ctx, e.Code, e.Version, fields); err != nil {
				return nil, err
			}
		}
		if err := tx.CloseAllocations(ctx, r.ID); err != nil {
			return nil, err
		}
		return models.Fields{
			models.ColReceivedByID:   c.UserID,
			models.ColReceivedByName: c.Name,
			models.ColReceivedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	msg := s.requesterMessage(notify.Returned, r, now)
	msg.Context["receivedBy"] = c.Name
	s.notify(ctx, msg)
	return r, nil
}

// Cancel needs a reason. Allocated items that are not decommissioned are released to
// AVAILABLE whatever their operational flag says.
func (s *LifecycleService) Cancel(ctx context.Context, c access.Caller, id, reason string) (*models.Requisition, error) {
	reason = strings.TrimSpace(reason)
	r, now, err := s.transition(ctx, c, id, ActionCancel, func(ctx context.Context, tx store.LendingStore, r *models.Requisition, now time.Time) (models.Fields, error) {
		if reason == "" {
			return nil, apperr.InvalidArgument("a cancellation reason is required")
		}
		allocs, err := tx.ListAllocations(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range allocs {
			e, err := tx.GetEquipment(ctx, a.EquipmentCode)
			if err != nil {
				return nil, err
			}
			if e.Decommissioned() || e.Status == models.StatusAvailable {
				continue
			}
			if err := tx.UpdateEquipment(ctx, e.Code, e.Version, models.Fields{
				models.ColStatus:    models.StatusAvailable,
				models.ColUpdatedAt: now,
			}); err != nil {
				return nil, err
			}
		}
		if err := tx.CloseAllocations(ctx, r.ID); err != nil {
			return nil, err
		}
		return models.Fields{
			models.ColCancelledByID:   c.UserID,
			models.ColCancelledByName: c.Name,
			models.ColCancelledAt:     now,
			models.ColCancelReason:    reason,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	msg := s.requesterMessage(notify.Cancelled, r, now)
	msg.Context["cancelledBy"] = c.Name
	msg.Context["reason"] = reason
	s.notify(ctx, msg)
	return r, nil
}

// AllocateItem attaches one item to a requisition that is not yet delivered. The item's
// version is bumped in the same unit, so of two concurrent allocations only one commits.
func (s *LifecycleService) AllocateItem(ctx context.Context, c access.Caller, reqID, code string) (*models.Allocation, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	now := s.Clock.now()
	var out *models.Allocation
	err := s.Store.Atomic(ctx, func(ctx context.Context, tx store.LendingStore) error {
		r, err := tx.GetRequisition(ctx, reqID)
		if err != nil {
			return err
		}
		if !r.State.AcceptsAllocations() {
			return apperr.InvalidTransition("cannot allocate equipment to a requisition in state %s", r.State)
		}
		if _, err := tx.GetAllocation(ctx, reqID, code); err == nil {
			return apperr.Conflict("equipment %s is already in this requisition", code)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		e, err := tx.GetEquipment(ctx, code)
		if err != nil {
			return err
		}
		if ok, why := e.Allocatable(); !ok {
			return apperr.Unavailable("%s: %s", code, why)
		}
		held, err := tx.FindActiveAllocation(ctx, code)
		if err != nil {
			return err
		}
		if held != nil {
			return apperr.Unavailable("%s: equipment is allocated to another requisition", code)
		}
		if err := tx.UpdateEquipment(ctx, code, e.Version, models.Fields{models.ColUpdatedAt: now}); err != nil {
			return err
		}

		a := &models.Allocation{
			RequisitionID: reqID,
			EquipmentCode: code,
			EquipmentName: e.Name,
			UsageCode:     e.UsageCode,
			TypeCode:      e.TypeCode,
			StartDate:     r.StartDate,
			EndDate:       r.EndDate,
			Description:   e.Description,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateAllocation(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LifecycleService) RemoveItem(ctx context.Context, c access.Caller, reqID, code string) error {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return err
	}
	return s.Store.Atomic(ctx, func(ctx context.Context, tx store.LendingStore) error {
		r, err := tx.GetRequisition(ctx, reqID)
		if err != nil {
			return err
		}
		if !r.State.AcceptsAllocations() {
			return apperr.InvalidTransition("cannot remove equipment from a requisition in state %s", r.State)
		}
		return tx.DeleteAllocation(ctx, reqID, code)
	})
}

// UpdateAllocationNotes edits the allocation's description/notes; with propagate the
// equipment record gets the same text.
func (s *LifecycleService) UpdateAllocationNotes(ctx context.Context, c access.Caller, reqID, code string, p AllocationPatch, propagate bool) (*models.Allocation, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	fields := models.Fields{}
	if p.Description != nil {
		fields[models.ColDescription] = *p.Description
	}
	if p.Notes != nil {
		fields[models.ColNotes] = *p.Notes
	}
	now := s.Clock.now()

	var out *models.Allocation
	err := s.Store.Atomic(ctx, func(ctx context.Context, tx store.LendingStore) error {
		r, err := tx.GetRequisition(ctx, reqID)
		if err != nil {
			return err
		}
		if !r.State.AcceptsAllocations() {
			return apperr.InvalidTransition("cannot edit equipment of a requisition in state %s", r.State)
		}
		if len(fields) > 0 {
			fields[models.ColUpdatedAt] = now
			if err := tx.UpdateAllocation(ctx, reqID, code, fields); err != nil {
				return err
			}
			if propagate {
				e, err := tx.GetEquipment(ctx, code)
				if err != nil {
					return err
				}
				if err := tx.UpdateEquipment(ctx, code, e.Version, fields); err != nil {
					return err
				}
			}
		}
		a, err := tx.GetAllocation(ctx, reqID, code)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get lets members read only their own requisitions; managers read everything.
func (s *LifecycleService) Get(ctx context.Context, c access.Caller, id string) (*models.Requisition, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	r, err := s.Store.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsManager() && r.RequesterID != c.UserID {
		return nil, apperr.PermissionDenied("requisition belongs to another member")
	}
	return r, nil
}

func (s *LifecycleService) ListAllocations(ctx context.Context, c access.Caller, id string) ([]models.Allocation, error) {
	if _, err := s.Get(ctx, c, id); err != nil {
		return nil, err
	}
	return s.Store.ListAllocations(ctx, id)
}

func (s *LifecycleService) List(ctx context.Context, c access.Caller, f ListFilter) (store.RequisitionPage, error) {
	if err := access.RequireReader(c); err != nil {
		return store.RequisitionPage{}, err
	}
	q := store.RequisitionQuery{States: f.States, RequesterID: f.RequesterID, Page: f.Page, Size: f.Size}
	if f.Pending {
		q.States = []models.RequisitionState{models.StateSubmitted, models.StateInPreparation}
	}
	for _, st := range q.States {
		if !st.Valid() {
			return store.RequisitionPage{}, apperr.InvalidArgument("unknown state %q", st)
		}
	}
	if !c.IsManager() {
		if f.RequesterID != "" && f.RequesterID != c.UserID {
			return store.RequisitionPage{}, apperr.PermissionDenied("requisitions of another member")
		}
		q.RequesterID = c.UserID
	}
	return s.Store.ListRequisitions(ctx, q)
}

// Stats counts requisitions per state: all of them for managers, their own for members.
func (s *LifecycleService) Stats(ctx context.Context, c access.Caller) (map[models.RequisitionState]int64, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	requester := ""
	if !c.IsManager() {
		requester = c.UserID
	}
	return s.Store.CountRequisitionsByState(ctx, requester)
}

func (s *LifecycleService) message(k notify.Kind, r *models.Requisition, now time.Time) notify.Message {
	return notify.Message{
		Kind:          k,
		RequisitionID: r.ID,
		RequesterID:   r.RequesterID,
		At:            now,
		Context: map[string]string{
			"requester": r.RequesterName,
			"start":     r.StartDate.Format(dateLayout),
			"end":       r.EndDate.Format(dateLayout),
		},
	}
}

func (s *LifecycleService) requesterMessage(k notify.Kind, r *models.Requisition, now time.Time) notify.Message {
	msg := s.message(k, r, now)
	if r.RequesterEmail != "" {
		msg.To = []string{r.RequesterEmail}
	}
	if s.StaffEmail != "" {
		msg.Cc = []string{s.StaffEmail}
	}
	return msg
}

func (s *LifecycleService) staffEmails(ctx context.Context) []string {
	if s.Staff == nil {
		return nil
	}
	emails, err := s.Staff.ListStaffEmails(ctx)
	if err != nil {
		log.Printf("notify: list staff e-mails: %v", err)
		return nil
	}
	return emails
}

// notify runs after the commit; a failed delivery is only logged.
func (s *LifecycleService) notify(ctx context.Context, m notify.Message) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, m); err != nil {
		log.Printf("notify: %s for requisition %s failed: %v", m.Kind, m.RequisitionID, err)
	}
}

func deref(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
