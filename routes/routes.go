package routes

import (
	"net/http"
	"time"

	"alforge/app"
	"alforge/controllers"
	"alforge/models"
	"alforge/services"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)

	// 复用的中间件
	authMW := app.AuthRequired(a.Gate())
	seenMW := app.TouchLastSeen(a.AppSessions(), a.Repo, 5*time.Minute)

	Mount(r, s, authMW, seenMW)
}

// Mount 挂载全部路由；auth 负责把 Caller 放进上下文
func Mount(r *gin.Engine, s *controllers.Srv, auth, seen gin.HandlerFunc) {
	gestorMW := app.RequireRole(models.RoleGestor)
	adminMW := app.RequireRole(models.RoleAdmin)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	// ------------------------------
	// WebAuthn（公开+受保护）
	// ------------------------------
	wa := r.Group("/webauthn")
	{
		// 公开：注册/登录流程
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)

		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	waAuth := wa.Group("", auth, seen)
	{
		waAuth.GET("/whoami", s.WhoAmI)
		waAuth.POST("/logout", s.Logout)
	}

	// 已登录用户添加新凭据（绑定手机等）
	creds := r.Group("/api/credentials", auth, seen)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	api := r.Group("/api", auth, seen)
	{
		api.POST("/auth/token", s.IssueToken)
		api.GET("/live", s.Live)

		api.GET("/categories", s.ListCategories)
		api.PUT("/categories", gestorMW, s.PutCategories)
	}

	// ------------------------------
	// 器材
	// ------------------------------
	eq := api.Group("/equipment")
	{
		eq.GET("", s.ListEquipment) // ?usage=&type=&status=&q=
		eq.GET("/available", s.AvailableEquipment)
		eq.GET("/:code", s.GetEquipment)

		eq.POST("", gestorMW, s.CreateEquipment)
		eq.POST("/next-code", gestorMW, s.NextEquipmentCode)
		eq.PATCH("/:code", gestorMW, s.UpdateEquipment)
		eq.GET("/:code/overrides", gestorMW, s.EquipmentHistory)
		for _, action := range []string{"decommission", "reactivate", "hold", "release", "repaired"} {
			eq.POST("/:code/"+action, gestorMW, s.OverrideEquipment(action))
		}
	}

	// ------------------------------
	// 领用单（权限在 service 层逐条判断）
	// ------------------------------
	reqs := api.Group("/requisitions")
	{
		reqs.GET("", s.ListRequisitions) // ?state=&pending=&requester=&page=&size=
		reqs.POST("", s.SubmitRequisition)
		reqs.GET("/stats", s.RequisitionStats)
		reqs.GET("/:id", s.GetRequisition)
		for _, a := range []services.Action{
			services.ActionPrepare, services.ActionReady, services.ActionRevert,
			services.ActionDeliver, services.ActionReturn, services.ActionCancel,
		} {
			reqs.POST("/:id/"+string(a), s.AdvanceRequisition(a))
		}

		reqs.GET("/:id/items", s.ListAllocations)
		reqs.POST("/:id/items", s.AllocateItem)
		reqs.DELETE("/:id/items/:code", s.RemoveItem)
		reqs.PATCH("/:id/items/:code", s.UpdateAllocation) // ?propagate=1
	}

	api.GET("/export/:name", gestorMW, s.ExportDataset)

	// ------------------------------
	// 邀请 / 邮件设置（仅管理员）
	// ------------------------------
	admin := r.Group("/admin", auth, adminMW)
	{
		admin.POST("/invites", s.CreateInvite)
		admin.GET("/invites", s.ListInvites) // ?pending=1
		admin.GET("/settings/mail", s.GetMailSettings)
		admin.PUT("/settings/mail", s.PutMailSettings)
	}

	// ------------------------------
	// 用户管理（仅管理员）
	// ------------------------------
	users := r.Group("/api/users", auth, adminMW)
	{
		users.GET("", s.ListUsers)   // ?q=&page=&size=
		users.GET("/:id", s.GetUser) // 精确查单个
		users.PATCH("/:id", s.UpdateUser)
		users.DELETE("/:id", s.DeleteUser)
	}
}
