package api

import (
	"tea_refill/internal/api/handler"
	"tea_refill/internal/api/middleware"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

type Services struct {
	Auth       *service.AuthService
	Requests   *service.RequestService
	Kitchens   *service.KitchenService
	Dispatcher *service.NotificationDispatcher
}

func SetupRouter(svc Services, authMw *middleware.AuthMiddleware, wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	if wsManager != nil {
		wsHandler := handler.NewWebSocketHandler(wsManager)
		r.GET("/ws", wsHandler.HandleWebSocket)
	}

	authHandler := handler.NewAuthHandler(svc.Auth)
	r.POST("/auth/login", authHandler.Login)

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		v1.PUT("/users/me/push-token", authHandler.UpdatePushToken)

		reqH := handler.NewRequestHandler(svc.Requests, svc.Dispatcher)

		machineRoutes := v1.Group("/machines")
		{
			machineRoutes.POST("/canister-level", authMw.AuthorizeRole("admin", "machine"), reqH.CheckCanisterLevel)
			machineRoutes.GET("/:machineId/requests", reqH.ListMachineRequests)
		}

		requestRoutes := v1.Group("/requests")
		{
			requestRoutes.GET("", authMw.AuthorizeRole("admin"), reqH.FindRequests)
			requestRoutes.GET("/:requestId", reqH.GetRequest)
			requestRoutes.GET("/:requestId/status-updates", reqH.ListStatusUpdates)
			requestRoutes.POST("/decline", authMw.AuthorizeRole("admin", "kitchen"), reqH.DeclineAndReassign)
			requestRoutes.POST("/transitions/:mutation", authMw.AuthorizeRole("admin", "kitchen", "agent"), reqH.Transition)
		}

		kitchenH := handler.NewKitchenHandler(svc.Kitchens)
		kitchenRoutes := v1.Group("/kitchens/:userId")
		kitchenRoutes.Use(authMw.AuthorizeSelfOrAdmin("userId"))
		{
			kitchenRoutes.GET("/pending", reqH.ListPendingForKitchen)
			kitchenRoutes.POST("/members", kitchenH.AddMember)
			kitchenRoutes.POST("/canisters", kitchenH.RegisterCanister)
		}
	}
	return r
}
