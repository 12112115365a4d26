// app/seenmw.go
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type SeenThrottle interface {
	ShouldTouchSeen(ctx context.Context, userID string, window time.Duration) (bool, error)
}

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

func TouchLastSeen(th SeenThrottle, users SeenToucher, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := CallerFrom(c).UserID
		if uid == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		if ok, _ := th.ShouldTouchSeen(ctx, uid, throttle); ok {
			_ = users.TouchUserSeen(ctx, uid) // 忽略错误，不阻塞请求
		}
		c.Next()
	}
}
