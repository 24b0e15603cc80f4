// Package app wires repositories, services and handlers into one gin engine.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"roombooking/internal/middleware"
	"roombooking/internal/modules/auth"
	"roombooking/internal/modules/notification"
	"roombooking/internal/modules/roomloan"
	"roombooking/internal/pkg/jwt"
	"roombooking/internal/pkg/lock"
	"roombooking/internal/pkg/response"
	"roombooking/internal/repository"
)

type Deps struct {
	DB          *gorm.DB
	Tokens      *jwt.Service
	Locker      lock.Locker
	CORSOrigins []string
	// AccessLog enables gin's request logger.
	AccessLog bool
}

type App struct {
	Router *gin.Engine
	Hub    *notification.Hub
	Loans  *roomloan.Service
	Auth   *auth.Service
}

func New(d Deps) *App {
	locker := d.Locker
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	userRepo := repository.NewUserRepository(d.DB)
	loanRepo := repository.NewRoomLoanRepository(d.DB)

	hub := notification.NewHub()

	authService := auth.NewService(userRepo, d.Tokens)
	authHandler := auth.NewHandler(authService)

	loanService := roomloan.NewService(loanRepo, locker, hub)
	loanHandler := roomloan.NewHandler(loanService)

	notifHandler := notification.NewHandler(hub, d.Tokens, d.CORSOrigins)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger())
	if d.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/health", healthHandler(d.DB))
	notifHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.Tokens))
		{
			authHandler.RegisterProtectedRoutes(protected)
			loanHandler.RegisterRoutes(protected)
		}
	}

	return &App{
		Router: r,
		Hub:    hub,
		Loans:  loanService,
		Auth:   authService,
	}
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			_ = c.Error(err)
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
