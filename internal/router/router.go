package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/sagebright/gateway/api/handler"
)

type Handlers struct {
	Session       *apiHandler.SessionHandler
	Org           *apiHandler.OrgHandler
	Voice         *apiHandler.VoiceHandler
	Intent        *apiHandler.IntentHandler
	Navigate      *apiHandler.NavigateHandler
	Readiness     *apiHandler.ReadinessHandler
	Chat          *apiHandler.ChatHandler
	Notifications *apiHandler.NotificationHandler
	Health        *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Session routes
	r.POST("/api/v1/session/login", handlers.Session.Login)
	r.POST("/api/v1/session/refresh", handlers.Session.Refresh)
	r.POST("/api/v1/session/logout", handlers.Session.Logout)
	r.GET("/api/v1/session", handlers.Session.Get)

	// Context resolution
	r.GET("/api/v1/org", handlers.Org.Get)
	r.POST("/api/v1/org/recover", handlers.Org.Recover)
	r.GET("/api/v1/voice", handlers.Voice.Resolve)
	r.GET("/api/v1/readiness", handlers.Readiness.Get)

	// Redirect intents and navigation
	r.POST("/api/v1/intent", handlers.Intent.Capture)
	r.GET("/api/v1/intent", handlers.Intent.Get)
	r.POST("/api/v1/intent/execute", handlers.Intent.Execute)
	r.DELETE("/api/v1/intent", handlers.Intent.Clear)
	r.POST("/api/v1/navigate", handlers.Navigate.Navigate)
	r.POST("/api/v1/navigate/redirect", handlers.Navigate.Redirect)

	r.GET("/api/v1/notifications", handlers.Notifications.Drain)

	// Protected routes
	r.POST("/api/v1/chat/send", authMiddleware(handlers.Chat.Send))
	r.GET("/api/v1/chat/messages", authMiddleware(handlers.Chat.Messages))

	return r
}
