package controllers

import (
	"net/http"

	"alforge/app"
	"alforge/models"
	"alforge/services"

	"github.com/gin-gonic/gin"
)

// GET /api/equipment?usage=&type=&status=&q=
func (s *Srv) ListEquipment(c *gin.Context) {
	items, err := s.Equipment.List(c.Request.Context(), app.CallerFrom(c), services.InventoryFilter{
		UsageCode: c.Query("usage"),
		TypeCode:  c.Query("type"),
		Status:    models.EquipmentStatus(c.Query("status")),
		Text:      c.Query("q"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

// GET /api/equipment/available?usage=&type=&q=&exclude=a,b&limit=
func (s *Srv) AvailableEquipment(c *gin.Context) {
	items, err := s.Equipment.FindAvailable(c.Request.Context(), app.CallerFrom(c), services.AvailableFilter{
		UsageCode: c.Query("usage"),
		TypeCode:  c.Query("type"),
		Text:      c.Query("q"),
		Exclude:   queryList(c, "exclude"),
		Limit:     queryInt(c, "limit", 0),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (s *Srv) GetEquipment(c *gin.Context) {
	it, err := s.Equipment.Get(c.Request.Context(), app.CallerFrom(c), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

// POST /api/equipment 不带 code 时按 (usage, type) 自动编号
func (s *Srv) CreateEquipment(c *gin.Context) {
	var in services.NewEquipment
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	var (
		it  *models.Equipment
		err error
	)
	if in.Code == "" {
		it, err = s.Equipment.CreateWithGeneratedCode(c.Request.Context(), app.CallerFrom(c), in)
	} else {
		it, err = s.Equipment.Create(c.Request.Context(), app.CallerFrom(c), in)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"item": it})
}

// POST /api/equipment/next-code 仅预览，不占号
func (s *Srv) NextEquipmentCode(c *gin.Context) {
	var in struct {
		UsageCode string `json:"usageCode"`
		TypeCode  string `json:"typeCode"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	code, err := s.Equipment.NextCode(c.Request.Context(), app.CallerFrom(c), in.UsageCode, in.TypeCode)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"code": code})
}

func (s *Srv) UpdateEquipment(c *gin.Context) {
	var in services.EquipmentPatch
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := s.Equipment.UpdateFields(c.Request.Context(), app.CallerFrom(c), c.Param("code"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

// POST /api/equipment/:code/{decommission,reactivate,hold,release,repaired}
func (s *Srv) OverrideEquipment(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Reason string `json:"reason"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&in); err != nil {
				badRequest(c, err)
				return
			}
		}
		ctx, caller, code := c.Request.Context(), app.CallerFrom(c), c.Param("code")

		var (
			it  *models.Equipment
			err error
		)
		switch action {
		case "decommission":
			it, err = s.Equipment.MarkDecommissioned(ctx, caller, code, in.Reason)
		case "reactivate":
			it, err = s.Equipment.Reactivate(ctx, caller, code, in.Reason)
		case "hold":
			it, err = s.Equipment.Hold(ctx, caller, code, in.Reason)
		case "release":
			it, err = s.Equipment.ReleaseHold(ctx, caller, code)
		case "repaired":
			it, err = s.Equipment.FinishRepair(ctx, caller, code)
		default:
			c.JSON(http.StatusNotFound, app.H{"error": "unknown action"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, app.H{"item": it})
	}
}

// GET /api/equipment/:code/overrides
func (s *Srv) EquipmentHistory(c *gin.Context) {
	logs, err := s.Equipment.History(c.Request.Context(), app.CallerFrom(c), c.Param("code"), queryInt(c, "limit", 100))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"overrides": logs})
}
