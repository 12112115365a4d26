package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"alforge/app"

	"github.com/gin-gonic/gin"
)

// GET /api/export/:name  e.g. requisitions.csv, equipment.xlsx
func (s *Srv) ExportDataset(c *gin.Context) {
	name := c.Param("name")
	// 先写进缓冲区，出错时还能返回 JSON
	var buf bytes.Buffer
	f, err := s.Export.Export(c.Request.Context(), app.CallerFrom(c), name, &buf)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}
