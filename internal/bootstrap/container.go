package bootstrap

import (
	"context"
	"log"

	"annotator-be/internal/config"
	"annotator-be/internal/controller"
	"annotator-be/internal/mapper"
	"annotator-be/internal/pkg/logger"
	"annotator-be/internal/pkg/serverutils"
	"annotator-be/internal/repository/memory"
	"annotator-be/internal/repository/unitofwork"
	"annotator-be/internal/service"
	"annotator-be/pkg/annotation"
	pktNats "annotator-be/pkg/nats"
	"annotator-be/pkg/rdfutil"
	"annotator-be/pkg/sparql"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const submittedTopic = "annotations.submitted"

type Container struct {
	// Controllers
	AuthController       controller.IAuthController
	AnnotationController controller.IAnnotationController

	SessionMiddleware fiber.Handler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	samplerLogger := logger.NewIsolatedLogger(cfg.App.SamplerLogFilePath)

	// 2. Triple store
	bank, err := sparql.LoadBankFile(cfg.Sparql.QueryBankPath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load SPARQL query bank: %v", err)
	}
	prefixes, err := rdfutil.LoadPrefixFile(cfg.Sparql.PrefixFilePath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load prefix map: %v", err)
	}
	store := sparql.NewClient(sparql.Options{
		QueryEndpoint:  cfg.Sparql.QueryEndpoint,
		UpdateEndpoint: cfg.Sparql.UpdateEndpoint,
		ConnectTimeout: cfg.Sparql.ConnectTimeout,
		ReadTimeout:    cfg.Sparql.ReadTimeout,
	})

	sampler, err := annotation.NewCandidateSampler(store, bank, annotation.SamplerConfig{
		AgreementWeight: cfg.Sparql.AgreementRate,
		MaxAttempts:     cfg.Sparql.MaxAttempts,
		RequestTimeout:  cfg.Sparql.RequestTimeout,
	}, samplerLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize candidate sampler: %v", err)
	}
	coordinator, err := annotation.NewSubmissionCoordinator(store, bank, cfg.Sparql.RequestTimeout, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize submission coordinator: %v", err)
	}

	// In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository(cfg.Cache.SessionTTL, cfg.Cache.PurgeInterval, func(email string) *annotation.SessionCandidateCache {
		return annotation.NewSessionCandidateCache(email, sampler)
	})

	// 3. Infrastructure
	// NATS. A nil *Publisher must not end up inside the interface.
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}

	// Redis
	var rdb redis.Cmdable
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	redisClient := redis.NewClient(opt)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, annotation counts are not cached: %v", err)
	} else {
		rdb = redisClient
	}

	// 4. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	// 5. Services
	countService := service.NewAnnotationCountService(store, bank, rdb, cfg.Cache.CountTTL, cfg.Sparql.RequestTimeout, sysLogger)
	publisherService := service.NewPublisherService(submittedTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, submittedTopic, countService, eventPublisher, sysLogger)

	authService := service.NewAuthService(uowFactory, sessionRepo, eventPublisher, cfg.Auth.JwtSecret, cfg.Auth.SessionTTL, sysLogger)
	annotationService := service.NewAnnotationService(
		sessionRepo,
		coordinator,
		countService,
		publisherService,
		uowFactory,
		mapper.NewCandidateMapper(prefixes),
		sysLogger,
	)

	c := &Container{
		AuthController:       controller.NewAuthController(authService, cfg.App.Environment == "production"),
		AnnotationController: controller.NewAnnotationController(annotationService),
		SessionMiddleware:    serverutils.SessionMiddleware(cfg.Auth.JwtSecret, sessionRepo),
		ConsumerService:      consumerService,
		Logger:               sysLogger,
	}
	c.closers = append(c.closers, func() { _ = pubSub.Close() }, func() { _ = redisClient.Close() })
	if natsPub != nil {
		c.closers = append(c.closers, natsPub.Close)
	}
	c.closers = append(c.closers, func() { _ = samplerLogger.Sync() }, func() { _ = sysLogger.Sync() })
	return c
}

// Close shuts down outbound connections and flushes logs.
func (c *Container) Close() {
	for _, fn := range c.closers {
		fn()
	}
}
