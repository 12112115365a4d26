package controllers

import (
	"net/http"

	"alforge/app"
	"alforge/db"
	"alforge/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/users?q=alice&page=1&size=20
func (s *Srv) ListUsers(c *gin.Context) {
	res, err := s.Users.List(c.Request.Context(), app.CallerFrom(c), c.Query("q"), queryInt(c, "page", 1), queryInt(c, "size", 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"total": res.Total, "users": res.Users})
}

func validID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid uuid"})
		return "", false
	}
	return id, true
}

// GET /api/users/:id
func (s *Srv) GetUser(c *gin.Context) {
	id, ok := validID(c)
	if !ok {
		return
	}
	user, err := s.Users.Get(c.Request.Context(), app.CallerFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

// PATCH /api/users/:id
func (s *Srv) UpdateUser(c *gin.Context) {
	id, ok := validID(c)
	if !ok {
		return
	}
	var in struct {
		DisplayName *string      `json:"displayName"`
		Email       *string      `json:"email"`
		Role        *models.Role `json:"role"`
		Active      *bool        `json:"active"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.Users.Update(c.Request.Context(), app.CallerFrom(c), id, db.UserPatch{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Role:        in.Role,
		Active:      in.Active,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

// DELETE /api/users/:id 会连带删 credentials 并撤销会话
func (s *Srv) DeleteUser(c *gin.Context) {
	id, ok := validID(c)
	if !ok {
		return
	}
	if err := s.Users.Delete(c.Request.Context(), app.CallerFrom(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /admin/invites
func (s *Srv) CreateInvite(c *gin.Context) {
	var in struct {
		Email   string      `json:"email" binding:"required,email"`
		Role    models.Role `json:"role"`
		Expires int         `json:"expiresDays"` // 默认 1 天
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.Users.Invite(c.Request.Context(), app.CallerFrom(c), in.Email, in.Role, in.Expires)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /admin/invites?pending=1
func (s *Srv) ListInvites(c *gin.Context) {
	pending := c.Query("pending") == "1" || c.Query("pending") == "true"
	invites, err := s.Users.ListInvites(c.Request.Context(), app.CallerFrom(c), pending)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"invites": invites})
}
