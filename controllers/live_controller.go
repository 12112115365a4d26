package controllers

import (
	"log"

	"alforge/app"

	"github.com/gin-gonic/gin"
)

// GET /api/live 升级为 websocket；员工收到全部事件，普通成员只收到自己的
func (s *Srv) Live(c *gin.Context) {
	caller := app.CallerFrom(c)
	if err := s.Hub.Serve(c.Writer, c.Request, caller.UserID, caller.IsManager()); err != nil {
		log.Printf("live: upgrade for %s: %v", caller.UserID, err)
	}
}
