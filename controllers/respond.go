package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"alforge/app"
	"alforge/apperr"

	"github.com/gin-gonic/gin"
)

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindUnavailable, apperr.KindInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail 把 apperr 映射为 HTTP 状态，其余错误一律 500
func fail(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, app.H{"error": "internal error", "code": apperr.KindInternal})
		return
	}
	st := statusOf(ae.Kind)
	if st == http.StatusInternalServerError || ae.Err != nil {
		// 底层驱动错误只进日志，不回给客户端
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(st, app.H{"error": apperr.Message(err), "code": ae.Kind})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, app.H{"error": err.Error(), "code": apperr.KindInvalidArgument})
}

func queryInt(c *gin.Context, key string, def int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil {
		return n
	}
	return def
}

// queryList 支持 ?k=a,b 和 ?k=a&k=b
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
