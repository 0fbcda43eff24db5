package pkg

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"

	"MemberPortal/internal/auth"
	"MemberPortal/internal/communication"
	"MemberPortal/internal/config"
	"MemberPortal/internal/notification"
	"MemberPortal/internal/realtime"
	"MemberPortal/pkg/middleware"
)

var EchoModules = fx.Module("portal",
	fx.Provide(
		config.NewLogger,
		NewEchoServer,
		config.NewMongoDBConfig,
		config.NewMongoDBClient,
		config.NewResendConfig,
		config.NewEmailService,
		realtime.NewNotifier,

		auth.NewUserRepository,
		auth.NewUserService,
		auth.NewAuthHandler,

		communication.NewCommunicationRepository,
		communication.NewRecipientRepository,
		communication.NewStatsRepository,
		notification.NewNotificationRepository,

		// Bind concrete repositories to the consumer-side interfaces.
		func(r *auth.UserRepository) communication.UserDirectory { return r },
		func(r *communication.CommunicationRepository) communication.CommunicationStore { return r },
		func(r *communication.RecipientRepository) communication.RecipientLedger { return r },
		func(r *communication.StatsRepository) communication.FleetAggregator { return r },
		func(r *notification.NotificationRepository) communication.NotificationLedger { return r },
		func(r *notification.NotificationRepository) notification.Store { return r },
		func(r *communication.RecipientRepository) notification.RecipientMarker { return r },
		func(s *config.EmailService) communication.EmailSender { return s },
		func(f *communication.Fanout) notification.Dispatcher { return f },

		communication.NewAudienceResolver,
		communication.NewService,
		communication.NewFanout,
		communication.NewStatsService,
		communication.NewCommunicationHandler,

		notification.NewNotificationService,
		notification.NewNotificationHandler,
		notification.NewSweeper,
	),
	fx.Invoke(EnsureIndexes),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartSweeper),
)

func NewEchoServer(lc fx.Lifecycle, logger *zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"http://localhost:5173"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	port := ":8080"
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().Str("addr", port).Msg("starting server")
			go func() {
				if err := e.Start(port); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("failed to start the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

// EnsureIndexes creates the indexes the ledgers rely on: the unique recipient
// pair index and the notification TTL index.
func EnsureIndexes(db *mongo.Database, logger *zerolog.Logger) {
	config.EnsureRecipientIndex(db.Collection("communication_recipients"), logger)
	config.EnsureNotificationTTLIndex(db.Collection("notifications"), logger)
}

func StartSweeper(lc fx.Lifecycle, sweeper *notification.Sweeper) error {
	return sweeper.Start(lc)
}

func RegisterRoutes(e *echo.Echo, authHandler *auth.AuthHandler, commHandler *communication.CommunicationHandler, notifHandler *notification.NotificationHandler) {
	e.POST("/register", authHandler.Register)
	e.POST("/login", authHandler.Login)

	api := e.Group("/api")
	api.Use(middleware.JWTMiddleware)

	api.GET("/profile", authHandler.Profile)

	api.POST("/communications", commHandler.Create)
	api.GET("/communications", commHandler.List)
	api.GET("/communications/admin", commHandler.ListAdmin, middleware.CasbinMiddleware)
	api.GET("/communications/stats", commHandler.FleetStats, middleware.CasbinMiddleware)
	api.GET("/communications/:id", commHandler.Get)
	api.PUT("/communications/:id", commHandler.Update)
	api.DELETE("/communications/:id", commHandler.Delete)
	api.POST("/communications/:id/send", commHandler.Send)
	api.POST("/communications/:id/schedule", commHandler.Schedule)
	api.GET("/communications/:id/recipients", commHandler.Recipients)
	api.GET("/communications/:id/stats", commHandler.Stats)

	api.GET("/notifications", notifHandler.List)
	api.GET("/notifications/unread", notifHandler.Unread)
	api.PUT("/notifications/mark-all-read", notifHandler.MarkAllRead)
	api.PUT("/notifications/:id/read", notifHandler.MarkRead)
	api.PUT("/notifications/:id/displayed", notifHandler.MarkDisplayed)
	api.DELETE("/notifications/:id", notifHandler.Delete)
	api.POST("/notifications/create-for-communication", commHandler.RebuildNotifications, middleware.CasbinMiddleware)
}
