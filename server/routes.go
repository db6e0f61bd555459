package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc) {
	e := s.Echo
	api := e.Group("/api/v1")

	// Auth routes (unprotected)
	auth := api.Group("/auth")
	{
		auth.POST("/register", s.AuthHandler.Register)
		auth.POST("/login", s.AuthHandler.Login)
	}

	// Widget routes: the visitor side is unauthenticated.
	public := api.Group("/public")
	{
		public.POST("/rooms", s.RoomHandler.CreateRoom)
		public.POST("/rooms/:id/csat", s.RoomHandler.SubmitCsat)
		public.GET("/rooms/:id/ws", s.ChatSocketHandler.HandleRoomSocket)
		public.GET("/tenants/:tenantId/outside-hours", s.RoomHandler.OutsideHours)
	}

	// Console routes
	protected := api.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/user", s.AuthHandler.GetCurrentUser)

		rooms := protected.Group("/rooms")
		{
			rooms.GET("", s.RoomHandler.RoomList)
			rooms.GET("/:id", s.RoomHandler.GetRoom)
			rooms.POST("/:id/messages", s.RoomHandler.SendMessage)
			rooms.GET("/:id/messages", s.RoomHandler.GetMessages)
			rooms.POST("/:id/close", s.RoomHandler.CloseRoom)
			rooms.POST("/:id/read", s.RoomHandler.MarkRead)
			rooms.POST("/:id/claim", s.QueueHandler.Claim)
			rooms.POST("/:id/transfer", s.QueueHandler.Transfer)
			rooms.POST("/:id/auto-assign", s.QueueHandler.AutoAssign)
		}

		queue := protected.Group("/queue")
		{
			queue.GET("", s.QueueHandler.Queue)
		}

		attendants := protected.Group("/attendants")
		{
			attendants.GET("/online", s.QueueHandler.OnlineAttendants)
			attendants.GET("/:id/load", s.QueueHandler.Load)
			attendants.PUT("/me/presence", s.QueueHandler.SetPresence)
		}

		protected.GET("/rooms/:id/ws", s.ChatSocketHandler.HandleRoomSocket)
		protected.GET("/console/ws", s.ChatSocketHandler.HandleConsoleSocket)
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
