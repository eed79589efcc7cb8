package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	processingapp "github.com/slpk/loandocs/internal/processing/application"
	processinginfra "github.com/slpk/loandocs/internal/processing/infrastructure"
	processinghttp "github.com/slpk/loandocs/internal/processing/interfaces/http"
	submissionapp "github.com/slpk/loandocs/internal/submission/application"
	submissiondomain "github.com/slpk/loandocs/internal/submission/domain"
	submissioninfra "github.com/slpk/loandocs/internal/submission/infrastructure"
	submissionhttp "github.com/slpk/loandocs/internal/submission/interfaces/http"
	surveyapp "github.com/slpk/loandocs/internal/survey/application"
	surveydomain "github.com/slpk/loandocs/internal/survey/domain"
	surveyinfra "github.com/slpk/loandocs/internal/survey/infrastructure"
	surveyhttp "github.com/slpk/loandocs/internal/survey/interfaces/http"
	termapp "github.com/slpk/loandocs/internal/term/application"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
	terminfra "github.com/slpk/loandocs/internal/term/infrastructure"
	termhttp "github.com/slpk/loandocs/internal/term/interfaces/http"
	"github.com/slpk/loandocs/pkg/config"
	"github.com/slpk/loandocs/pkg/logger"
	"github.com/slpk/loandocs/pkg/middleware"
	"github.com/slpk/loandocs/pkg/mq"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// Document store.
	mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to mongodb", "error", err)
	}
	if err := mongoClient.Ping(mongoCtx, readpref.Primary()); err != nil {
		logger.Fatal(ctx, "failed to ping mongodb", "error", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error(ctx, "mongodb disconnect failed", "error", err)
		}
	}()
	db := mongoClient.Database(cfg.Mongo.Database)

	// Object store.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Blob.Region))
	if err != nil {
		logger.Fatal(ctx, "failed to load aws config", "error", err)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Blob.Endpoint != "" {
			o.BaseEndpoint = &cfg.Blob.Endpoint
			o.UsePathStyle = true
		}
	})
	blobs := submissioninfra.NewS3BlobStore(s3Client, cfg.Blob.Bucket, cfg.Blob.Region, cfg.Blob.Endpoint, cfg.BlobOpTimeout())

	// Domain events.
	var events submissiondomain.EventPublisher = mq.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "failed to create kafka producer", "error", err)
		}
		defer producer.Close()
		events = producer
	}

	// Repositories.
	opTimeout := cfg.MongoOpTimeout()
	records := submissioninfra.NewMongoSubmissionRepository(db, opTimeout)
	users := submissioninfra.NewMongoUserRepository(db, opTimeout)
	surveyStates := surveyinfra.NewMongoStateRepository(db, opTimeout)
	serviceConfigs := terminfra.NewMongoConfigRepository(db, opTimeout)
	workflows := processinginfra.NewMongoWorkflowRepository(db, opTimeout)

	var ocr submissiondomain.OCRClient
	if cfg.OCR.BaseURL != "" {
		ocr = submissioninfra.NewOCRClient(cfg.OCR.BaseURL, time.Duration(cfg.OCR.Timeout)*time.Second)
	}

	// Application services.
	fallbackTerm := termdomain.Term{
		AcademicYear: cfg.Term.DefaultAcademicYear,
		Number:       cfg.Term.DefaultTerm,
	}
	resolver := termapp.NewResolver(serviceConfigs, records, users, fallbackTerm)
	surveySvc := surveyapp.NewService(surveyStates, surveydomain.VariantPerParent)
	submissionSvc := submissionapp.NewService(records, users, blobs, ocr, events, resolver, surveydomain.VariantPerParent)
	processingSvc := processingapp.NewService(workflows, submissionSvc, submissionSource{resolver, submissionSvc}, events)

	// HTTP server.
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery(), middleware.CORS())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	surveyhttp.NewHandler(r, surveySvc)
	termhttp.NewHandler(r, resolver)
	submissionhttp.NewHandler(r, submissionSvc)
	processinghttp.NewHandler(r, processingSvc)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown failed", "error", err)
	}
	logger.Info(context.Background(), "shutdown complete")
}

// submissionSource adapts the term resolver and submission service to the
// processing module's read interface.
type submissionSource struct {
	resolver *termapp.Resolver
	subs     *submissionapp.Service
}

func (s submissionSource) CurrentTerm(ctx context.Context) termdomain.Term {
	return s.resolver.CurrentTerm(ctx)
}

func (s submissionSource) ListByTerm(ctx context.Context, t termdomain.Term) ([]submissiondomain.Record, error) {
	return s.subs.ListByTerm(ctx, t)
}
