package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vms-inventory/internal/config"
	"vms-inventory/internal/database"
	"vms-inventory/internal/events"
	custommiddleware "vms-inventory/internal/middleware"
	"vms-inventory/internal/notifier"
	"vms-inventory/internal/observability"
	"vms-inventory/internal/repository"
	"vms-inventory/internal/service"
	"vms-inventory/internal/transport"
)

// requestSlack is added on top of the worst case IMS retry schedule
const requestSlack = 15 * time.Second

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	publisher events.Publisher
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, tp trace.TracerProvider) (*Server, error) {
	sqlDB := db.DB()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	publisher, err := events.NewPublisher(cfg.Kafka, cfg.Otel.ServiceName, tp, logger)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	// Initialize repositories
	products := repository.NewProductRepository(sqlDB)
	variants := repository.NewVariantRepository(sqlDB)
	repos := service.OrderRepositories{
		Orders:    repository.NewOrderRepository(sqlDB),
		Customers: repository.NewCustomerRepository(sqlDB),
		Products:  products,
		History:   repository.NewStatusHistoryRepository(sqlDB),
	}
	txManager := database.NewTxManager(sqlDB)

	remoteBudget := notifier.PolicyFromConfig(cfg.IMS).Budget()

	// Initialize services
	orderService := service.NewOrderService(
		repos,
		txManager,
		service.NewVariantAllocator(variants),
		notifier.NewClient(cfg.IMS, logger),
		service.EndpointsFromConfig(cfg.IMS),
		publisher,
		tp.Tracer(observability.TracerName),
		logger,
		remoteBudget,
	)
	catalogService := service.NewCatalogService(products, variants, txManager, service.NewRandomCodes(), logger)

	requestTimeout := remoteBudget + requestSlack

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack(requestTimeout)...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "down"
		} else {
			health["redis"] = "up"
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	writers := custommiddleware.RequireRole(logger, custommiddleware.RoleAdmin, custommiddleware.RoleVMS)
	rateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "vms_rate_limit",
	}, logger)

	// Register routes
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware, writers, rateLimit)
	transport.NewProductHandler(catalogService, logger).RegisterRoutes(router, authMiddleware, writers)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      otelhttp.NewHandler(router, "vms-inventory"),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: requestTimeout + 5*time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}

	return server, nil
}

// Close releases the publisher, Redis and database, in that order
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	return nil
}
