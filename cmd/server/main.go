package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/traffic-density-go/internal/analysis"
	"github.com/jengzang/traffic-density-go/internal/api"
	"github.com/jengzang/traffic-density-go/internal/config"
	"github.com/jengzang/traffic-density-go/internal/database"
	"github.com/jengzang/traffic-density-go/internal/detector"
	"github.com/jengzang/traffic-density-go/internal/framesource"
	"github.com/jengzang/traffic-density-go/internal/handler"
	"github.com/jengzang/traffic-density-go/internal/logging"
	"github.com/jengzang/traffic-density-go/internal/middleware"
	"github.com/jengzang/traffic-density-go/internal/publisher"
	"github.com/jengzang/traffic-density-go/internal/repository"
	"github.com/jengzang/traffic-density-go/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 加载配置
	cfg := config.Load()

	logger, err := logging.New("server", cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath}, logger.Named("database"))
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer db.Close()

	observations := repository.NewObservationRepository(cfg.ObservationLogPath, logger.Named("observations"))
	if err := observations.EnsureInitialized(); err != nil {
		return err
	}

	// 启动检测进程, loaded once and shared by all requests
	det := detector.NewPythonDetector(cfg.DetectorPython, cfg.DetectorScript, cfg.DetectorModel, logger.Named("detector"))
	if err := det.Start(); err != nil {
		return err
	}
	defer det.Close()

	pipeline, err := analysis.NewPipeline(analysis.Options{
		Detector:   det,
		Opener:     framesource.NewFFmpegOpener(logger.Named("ffmpeg")),
		Log:        observations,
		Confidence: cfg.DetectorConfidence,
		FrameSkip:  cfg.FrameSkip,
		Location:   cfg.DefaultLocation,
		Logger:     logger.Named("pipeline"),
	})
	if err != nil {
		return err
	}

	pub := newPublisher(cfg, logger.Named("publisher"))
	defer pub.Close()

	analysisService := service.NewAnalysisService(pipeline, repository.NewRunRepository(db), pub, logger.Named("analysis"))
	if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create input directory %s", cfg.InputDir)
	}
	if err := analysisService.RestrictInputs(cfg.InputDir); err != nil {
		return err
	}
	handlers := api.Handlers{
		Analysis: handler.NewAnalysisHandler(analysisService),
		History:  handler.NewHistoryHandler(service.NewHistoryService(observations)),
		Runs:     handler.NewRunHandler(analysisService),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	defer limiter.Stop()

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.SetupRouter(cfg, handlers, limiter, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// 启动服务器
		logger.Infow("server starting", "addr", cfg.Port, "observation_log", cfg.ObservationLogPath, "input_dir", cfg.InputDir, "auth", cfg.JWTSecret != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPublisher falls back to dropping events when Kafka is not configured or unreachable
func newPublisher(cfg *config.Config, logger *zap.SugaredLogger) publisher.ObservationPublisher {
	if cfg.KafkaBootstrapServers == "" {
		return publisher.NopPublisher{}
	}

	pub, err := publisher.NewKafkaPublisher(publisher.KafkaConfig{
		BootstrapServers: cfg.KafkaBootstrapServers,
		Topic:            cfg.KafkaTopic,
		SecurityProtocol: cfg.KafkaSecurityProtocol,
		SASLMechanism:    cfg.KafkaSASLMechanism,
		SASLUsername:     cfg.KafkaSASLUsername,
		SASLPassword:     cfg.KafkaSASLPassword,
	}, logger)
	if err != nil {
		logger.Warnw("observation events disabled", "error", err)
		return publisher.NopPublisher{}
	}
	return pub
}
