package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/auth"
	"github.com/linwc/talkwire-server/internal/config"
	"github.com/linwc/talkwire-server/internal/core"
	"github.com/linwc/talkwire-server/internal/service/friends"
	"github.com/linwc/talkwire-server/internal/service/messages"
	"github.com/linwc/talkwire-server/internal/store"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Auth     *auth.Service
	Registry *core.Registry
	Router   *core.Router
	Friends  *friends.Service
	Messages *messages.Service
	Store    store.Store
}

// NewServer builds the HTTP server: the REST API, the websocket endpoint,
// health and metrics.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	userHandlers := NewUserHandlers(deps.Store, logger)
	friendsHandlers := NewFriendsHandlers(deps.Friends, deps.Store, logger)
	messageHandlers := NewMessageHandlers(deps.Messages, logger)
	groupHandlers := NewGroupHandlers(deps.Store, deps.Messages, logger)
	wsHandler := NewWSHandler(deps.Auth, deps.Registry, deps.Router, cfg.WSRateLimit, logger)

	engine.GET("/health", healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Auth, logger))
		{
			protected.GET("/users", userHandlers.ListUsers)

			protected.GET("/messages", messageHandlers.ListMessages)
			protected.GET("/messages/:friendId", messageHandlers.ListConversation)
			protected.POST("/messages/read/:friendId", messageHandlers.MarkConversationRead)

			protected.POST("/friends/request", friendsHandlers.SendRequest)
			protected.POST("/friends/accept", friendsHandlers.AcceptRequest)
			protected.POST("/friends/reject", friendsHandlers.RejectRequest)
			protected.GET("/friends", friendsHandlers.ListFriends)
			protected.GET("/friends/requests", friendsHandlers.ListPendingRequests)

			protected.POST("/groups", groupHandlers.CreateGroup)
			protected.GET("/groups", groupHandlers.ListGroups)
			protected.GET("/groups/:groupId/members", groupHandlers.ListMembers)
			protected.POST("/groups/:groupId/members", groupHandlers.AddMember)
			protected.GET("/groups/:groupId/messages", groupHandlers.ListGroupMessages)
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           rootHandler(engine, wsHandler, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// rootHandler keeps websocket traffic off the gin engine: gin wraps the
// ResponseWriter and websocket.Accept cannot hijack the wrapped writer.
// /ws and stray upgrades get the raw writer; everything else goes to gin.
func rootHandler(engine *gin.Engine, wsHandler stdhttp.Handler, logger *zerolog.Logger) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.URL.Path == "/ws" {
			wsHandler.ServeHTTP(w, r)
			return
		}
		// An upgrade on any other path is closed with a dedicated code so
		// clients can tell a bad path from an auth failure.
		if websocketUpgrade(r) {
			closeInvalidPath(w, r, logger)
			return
		}
		engine.ServeHTTP(w, r)
	})
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
