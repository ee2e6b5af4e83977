package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/auth"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/booking"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/health"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/itinerary"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/poi"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/reviews"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/schedule"
	"github.com/FACorreiaa/go-tourbook/internal/app/domain/statistics"
	"github.com/FACorreiaa/go-tourbook/internal/app/middleware"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
	"github.com/FACorreiaa/go-tourbook/internal/pkg/config"
)

// Dependencies is everything the route table needs from main.
type Dependencies struct {
	Pool      database.Pool
	Config    *config.Config
	Logger    *zap.Logger
	Publisher booking.EventPublisher
	// Optional; nil disables the response cache.
	CacheStore middleware.ResponseStore
}

type AppHandlers struct {
	Health     *health.Handler
	POI        *poi.Handler
	Schedule   *schedule.Handler
	Booking    *booking.Handler
	Itinerary  *itinerary.Handler
	Statistics *statistics.Handler
	Reviews    *reviews.Handler
}

func Setup(r *gin.Engine, deps Dependencies) {
	handlers := setupDependencies(deps)
	setupRouter(r, handlers, deps)
}

func setupDependencies(deps Dependencies) *AppHandlers {
	log := deps.Logger
	cfg := deps.Config
	tx := database.NewTxManager(deps.Pool)

	poiRepo := poi.NewRepository(deps.Pool, log)
	scheduleRepo := schedule.NewRepository(deps.Pool, log)
	bookingRepo := booking.NewRepository(deps.Pool, log)
	itineraryRepo := itinerary.NewRepository(deps.Pool, log)
	statisticsRepo := statistics.NewRepository(deps.Pool, log)
	reviewsRepo := reviews.NewRepository(deps.Pool, log)

	poiService := poi.NewServiceImpl(poiRepo, cfg.PageSize, log)
	scheduleService := schedule.NewServiceImpl(scheduleRepo, log)
	bookingService := booking.NewServiceImpl(bookingRepo, tx, deps.Publisher, log)
	itineraryService := itinerary.NewServiceImpl(itineraryRepo, tx, bookingService, log)
	statisticsService := statistics.NewService(statisticsRepo, log)
	reviewsService := reviews.NewServiceImpl(reviewsRepo, log)

	return &AppHandlers{
		Health:     health.NewHandler(deps.Pool, log),
		POI:        poi.NewHandler(poiService, cfg.DefaultLanguage, log),
		Schedule:   schedule.NewHandler(scheduleService, log),
		Booking:    booking.NewHandler(bookingService, log),
		Itinerary:  itinerary.NewHandler(itineraryService, log),
		Statistics: statistics.NewHandler(statisticsService, log),
		Reviews:    reviews.NewHandler(reviewsService, log),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, deps Dependencies) {
	r.GET("/health", h.Health.Check)

	jwtConfig := auth.JWTConfig{
		SecretKey:       deps.Config.JWTSecret,
		TokenExpiration: 24 * time.Hour,
		Logger:          deps.Logger,
	}
	optional := jwtConfig
	optional.Optional = true

	api := r.Group("/api")
	api.Use(middleware.ResponseCache(deps.CacheStore, middleware.ResponseCacheConfig{
		TTL:      deps.Config.Repositories.Redis.CacheTTL,
		Prefixes: []string{"/api/pois", "/api/search"},
		Exclude:  []string{"/schedules"},
		Logger:   deps.Logger,
	}))

	public := api.Group("")
	public.Use(auth.JWTAuthMiddleware(optional))
	{
		public.GET("/pois", h.POI.ListPOIs)
		public.GET("/pois/:id", h.POI.GetPOI)
		public.GET("/pois/:id/localized", h.POI.GetLocalizedPOI)
		public.GET("/pois/:id/translations", h.POI.ListTranslations)
		public.GET("/pois/:id/rating", h.POI.GetPOIRating)
		public.GET("/pois/:id/reviews", h.Reviews.ListByPOI)
		public.GET("/pois/:id/reviews/summary", h.Reviews.Summary)
		public.GET("/pois/:id/schedules", h.Schedule.ListByPOI)
		public.GET("/schedules/:scheduleID", h.Schedule.GetSchedule)

		public.GET("/search/radius", h.POI.SearchWithinRadius)
		public.GET("/search/nearest", h.POI.OrderByDistance)
	}

	protected := api.Group("")
	protected.Use(auth.JWTAuthMiddleware(jwtConfig))
	writeLimit := middleware.RateLimitMiddleware(
		middleware.NewRateLimiter(deps.Logger, deps.Config.WriteRateLimit, time.Minute))
	{
		protected.POST("/pois", h.POI.CreatePOI)
		protected.PATCH("/pois/:id", h.POI.UpdatePOI)
		protected.DELETE("/pois/:id", h.POI.DeletePOI)
		protected.POST("/pois/:id/translations", h.POI.AddTranslations)
		protected.POST("/pois/:id/reviews", writeLimit, h.Reviews.Submit)

		protected.POST("/pois/:id/schedules", h.Schedule.CreateSchedule)
		protected.PATCH("/schedules/:scheduleID", h.Schedule.UpdateSchedule)
		protected.DELETE("/schedules/:scheduleID", h.Schedule.DeleteSchedule)

		protected.POST("/itineraries", h.Itinerary.CreateItinerary)
		protected.GET("/itineraries", h.Itinerary.ListMine)
		protected.GET("/itineraries/:id", h.Itinerary.GetItinerary)
		protected.PATCH("/itineraries/:id", h.Itinerary.RenameItinerary)
		protected.DELETE("/itineraries/:id", h.Itinerary.DeleteItinerary)
		protected.GET("/itineraries/:id/items", h.Itinerary.ListItems)
		protected.POST("/itineraries/:id/items", h.Itinerary.AddItem)
		protected.POST("/itineraries/:id/items/validate", h.Itinerary.ValidateItem)
		protected.DELETE("/itineraries/:id/items/:itemID", h.Itinerary.RemoveItem)
		protected.GET("/itineraries/:id/stats", h.Statistics.GetItineraryStats)

		protected.POST("/bookings", writeLimit, h.Booking.Reserve)
		protected.GET("/bookings", h.Booking.ListMine)
		protected.GET("/bookings/:id", h.Booking.GetBooking)
		protected.POST("/bookings/:id/cancel", h.Booking.Cancel)
		protected.POST("/bookings/:id/confirm", h.Booking.Confirm)
	}
}
