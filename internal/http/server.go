// README: API gateway; builds the gin engine, registers routes and delegates to services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/Lm7452/UniEats/internal/http/handlers"
	"github.com/Lm7452/UniEats/internal/http/middleware"
	"github.com/Lm7452/UniEats/internal/infra"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/realtime"
	"github.com/Lm7452/UniEats/internal/service"
	"github.com/Lm7452/UniEats/internal/types"
)

type ServerDeps struct {
	Orders   service.OrderAPI
	Users    *user.Service
	Verifier infra.TokenVerifier
	Hub      *realtime.Hub
	Tickets  *realtime.Tickets
	Logger   *slog.Logger
	// ServiceName labels server spans. Empty disables otelgin.
	ServiceName    string
	TracerProvider trace.TracerProvider
}

type Server struct {
	deps ServerDeps
	log  *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{deps: deps, log: log}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.log))
	if s.deps.ServiceName != "" {
		var opts []otelgin.Option
		if s.deps.TracerProvider != nil {
			opts = append(opts, otelgin.WithTracerProvider(s.deps.TracerProvider))
		}
		r.Use(otelgin.Middleware(s.deps.ServiceName, opts...))
	}
	r.Use(middleware.Logging(s.log))

	orderHandler := handlers.NewOrderHandler(s.deps.Orders, s.log)
	driverHandler := handlers.NewDriverHandler(s.deps.Orders, s.log)
	adminHandler := handlers.NewAdminHandler(s.deps.Orders, s.deps.Users, s.log)
	profileHandler := handlers.NewProfileHandler(s.deps.Users, s.deps.Tickets, s.log)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/api/app-status", orderHandler.AppStatus)
	if s.deps.Hub != nil {
		r.GET("/ws", gin.WrapH(s.deps.Hub))
	}

	api := r.Group("/api", middleware.Auth(s.deps.Verifier, s.deps.Users.SignIn, s.log))
	api.GET("/profile", profileHandler.Get)
	api.PUT("/profile", profileHandler.Update)
	api.POST("/realtime/ticket", profileHandler.Ticket)
	api.POST("/payments/quote", orderHandler.Quote)

	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/history", orderHandler.History)
	api.GET("/orders/:id", orderHandler.Get)

	driver := api.Group("/driver", middleware.RequireRole(types.RoleDriver))
	driver.GET("/orders/available", driverHandler.ListAvailable)
	driver.GET("/orders/mine", driverHandler.ListMine)
	driver.PUT("/orders/:id/claim", driverHandler.Claim)
	driver.PUT("/orders/:id/status", driverHandler.UpdateStatus)
	driver.PUT("/orders/:id/complete", driverHandler.Complete)
	driver.PUT("/availability", driverHandler.SetAvailability)

	admin := api.Group("/admin", middleware.RequireRole(types.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.PUT("/users/:id/role", adminHandler.SetRole)
	admin.PUT("/users/:id/availability", adminHandler.SetAvailability)
	admin.GET("/orders", adminHandler.ListOrders)
	admin.PUT("/orders/:id/cancel", adminHandler.CancelOrder)
	admin.DELETE("/orders/:id", adminHandler.DeleteOrder)

	return r
}
