package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"alforge/app"
	"alforge/models"
	"alforge/services"

	"github.com/gin-gonic/gin"
)

// parseDay 接受 "2006-01-02" 或 RFC3339
func parseDay(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", field)
}

// POST /api/requisitions
func (s *Srv) SubmitRequisition(c *gin.Context) {
	var in struct {
		StartDate string `json:"startDate" binding:"required"`
		EndDate   string `json:"endDate" binding:"required"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parseDay("startDate", in.StartDate)
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseDay("endDate", in.EndDate)
	if err != nil {
		badRequest(c, err)
		return
	}
	r, err := s.Lifecycle.Submit(c.Request.Context(), app.CallerFrom(c), services.SubmitInput{StartDate: start, EndDate: end, Notes: in.Notes})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"requisition": r})
}

// GET /api/requisitions?state=SUBMITTED,READY&pending=1&requester=&page=&size=
func (s *Srv) ListRequisitions(c *gin.Context) {
	var states []models.RequisitionState
	for _, st := range queryList(c, "state") {
		states = append(states, models.RequisitionState(strings.ToUpper(st)))
	}
	page, err := s.Lifecycle.List(c.Request.Context(), app.CallerFrom(c), services.ListFilter{
		States:      states,
		Pending:     c.Query("pending") == "1" || c.Query("pending") == "true",
		RequesterID: c.Query("requester"),
		Page:        queryInt(c, "page", 1),
		Size:        queryInt(c, "size", 50),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Srv) RequisitionStats(c *gin.Context) {
	counts, err := s.Lifecycle.Stats(c.Request.Context(), app.CallerFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"counts": counts})
}

func (s *Srv) GetRequisition(c *gin.Context) {
	r, err := s.Lifecycle.Get(c.Request.Context(), app.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"requisition": r})
}

// POST /api/requisitions/:id/{prepare,ready,revert,deliver,return,cancel}
func (s *Srv) AdvanceRequisition(a services.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, caller, id := c.Request.Context(), app.CallerFrom(c), c.Param("id")

		var (
			r   *models.Requisition
			err error
		)
		switch a {
		case services.ActionPrepare:
			r, err = s.Lifecycle.BeginPreparation(ctx, caller, id)
		case services.ActionReady:
			r, err = s.Lifecycle.MarkReady(ctx, caller, id)
		case services.ActionRevert:
			r, err = s.Lifecycle.RevertToPreparation(ctx, caller, id)
		case services.ActionDeliver:
			r, err = s.Lifecycle.Deliver(ctx, caller, id)
		case services.ActionReturn:
			r, err = s.Lifecycle.Return(ctx, caller, id)
		case services.ActionCancel:
			var in struct {
				Reason string `json:"reason"`
			}
			if c.Request.ContentLength > 0 {
				if err := c.ShouldBindJSON(&in); err != nil {
					badRequest(c, err)
					return
				}
			}
			r, err = s.Lifecycle.Cancel(ctx, caller, id, in.Reason)
		default:
			c.JSON(http.StatusNotFound, app.H{"error": "unknown action"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, app.H{"requisition": r})
	}
}

// GET /api/requisitions/:id/items
func (s *Srv) ListAllocations(c *gin.Context) {
	items, err := s.Lifecycle.ListAllocations(c.Request.Context(), app.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

// POST /api/requisitions/:id/items {"code": "0201003"}
func (s *Srv) AllocateItem(c *gin.Context) {
	var in struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := s.Lifecycle.AllocateItem(c.Request.Context(), app.CallerFrom(c), c.Param("id"), strings.TrimSpace(in.Code))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"item": a})
}

func (s *Srv) RemoveItem(c *gin.Context) {
	if err := s.Lifecycle.RemoveItem(c.Request.Context(), app.CallerFrom(c), c.Param("id"), c.Param("code")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PATCH /api/requisitions/:id/items/:code?propagate=1
func (s *Srv) UpdateAllocation(c *gin.Context) {
	var in services.AllocationPatch
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	propagate := c.Query("propagate") == "1" || c.Query("propagate") == "true"
	a, err := s.Lifecycle.UpdateAllocationNotes(c.Request.Context(), app.CallerFrom(c), c.Param("id"), c.Param("code"), in, propagate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": a})
}
