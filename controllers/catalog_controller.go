package controllers

import (
	"net/http"
	"strings"

	"alforge/app"
	"alforge/models"

	"github.com/gin-gonic/gin"
)

// GET /api/categories?kind=USAGE|TYPE
func (s *Srv) ListCategories(c *gin.Context) {
	kind := models.CategoryKind(strings.ToUpper(c.Query("kind")))
	cats, err := s.Catalog.ListCategories(c.Request.Context(), app.CallerFrom(c), kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"categories": cats})
}

// PUT /api/categories {"categories": [...]}
func (s *Srv) PutCategories(c *gin.Context) {
	var in struct {
		Categories []models.Category `json:"categories" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := s.Catalog.UpsertCategories(c.Request.Context(), app.CallerFrom(c), in.Categories)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"categories": saved})
}

func (s *Srv) GetMailSettings(c *gin.Context) {
	ms, err := s.Catalog.MailSettings(c.Request.Context(), app.CallerFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"settings": ms})
}

// PUT /admin/settings/mail 空密码表示保留原值
func (s *Srv) PutMailSettings(c *gin.Context) {
	var in models.MailSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ms, err := s.Catalog.SaveMailSettings(c.Request.Context(), app.CallerFrom(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"settings": ms})
}
