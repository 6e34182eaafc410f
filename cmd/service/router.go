package service

import (
	"github.com/gin-gonic/gin"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/app/response"
	"github.com/speechbot/speechbot/cmd/service/handler"
	"github.com/speechbot/speechbot/cmd/service/middleware"
	"github.com/speechbot/speechbot/pkg/metrics"
)

func serve(core *core.Core) {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(middleware.UseTimer(s.Core))

	apiV1 := s.Engine.Group("/api/v1")
	{
		apiV1.GET("/connect", middleware.AuthorizationFromQuery(s.Core), handler.Websocket(s.Core))

		authed := apiV1.Group("")
		authed.Use(middleware.Authorization(s.Core), middleware.AcceptLanguage())

		chat := authed.Group("/chat")
		{
			chat.POST("", s.CreateChat)
			chat.GET("/list", s.ListChats)
			chat.GET("/search", s.SearchChats)
			chat.GET("/folders", s.ListFolders)
			chat.GET("/:chat", s.GetChat)
			chat.PUT("/:chat", s.UpdateChat)
			chat.DELETE("/:chat", s.DeleteChat)

			chat.POST("/:chat/read", s.MarkRead)
			chat.POST("/:chat/typing", s.Typing)

			message := chat.Group("/:chat/message")
			{
				message.POST("", s.SendMessage)
				message.GET("/list", s.ListMessages)
				message.PUT("/:message", s.EditMessage)
				message.DELETE("/:message", s.DeleteMessage)
				message.POST("/:message/reaction", s.React)
				message.PUT("/:message/status", s.UpdateMessageStatus)
				message.POST("/:message/stop", s.StopGeneration)
			}
		}

		authed.POST("/sync", s.Sync)
	}
}
