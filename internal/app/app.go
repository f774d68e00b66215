package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/smartwear-tech/go-backend/internal/cfg"
	v1Http "github.com/smartwear-tech/go-backend/internal/delivery/v1/http"
	"github.com/smartwear-tech/go-backend/internal/imaging"
	"github.com/smartwear-tech/go-backend/internal/infrastructure/kafka"
	minioInfra "github.com/smartwear-tech/go-backend/internal/infrastructure/minio"
	ml_service "github.com/smartwear-tech/go-backend/internal/infrastructure/ml"
	s3Repo "github.com/smartwear-tech/go-backend/internal/repository/minio"
	"github.com/smartwear-tech/go-backend/internal/repository/pgdb"
	pgdbConv "github.com/smartwear-tech/go-backend/internal/repository/pgdb/converter/generated"
	qdrantRepo "github.com/smartwear-tech/go-backend/internal/repository/qdrant"
	"github.com/smartwear-tech/go-backend/internal/repository/redis"
	redisConv "github.com/smartwear-tech/go-backend/internal/repository/redis/converter/generated"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/clients"
	"github.com/smartwear-tech/go-backend/pkg/closer"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/smartwear-tech/go-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// App собирает зависимости сервиса и управляет их жизненным циклом.
// Ресурсы закрываются в порядке LIFO через closer.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	httpSrv     *v1Http.Server
	closer      *closer.Closer
	imagesInfra *minioInfra.MinioInfrastructure
	appCancel   context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	const op = "app.NewApp"

	cl := closer.NewCloser(2 * time.Second)
	appCtx, appCancel := context.WithCancel(context.Background())

	db, err := initPGDB(log, cfg)
	if err != nil {
		appCancel()
		return nil, e.Wrap(op, err)
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	prConv := pgdbConv.NewProductConverterImpl()
	catConv := pgdbConv.NewCategoryConverterImpl()
	infoConv := redisConv.NewProductInfoConverterImpl()

	productRepo := pgdb.NewProductRepo(db.Pool, prConv)
	categoryRepo := pgdb.NewCategoryRepo(db.Pool, catConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		appCancel()
		return nil, e.Wrap(op, err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		appCancel()
		return nil, e.Wrap(op, err)
	}
	minioCancel()

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, cfg.Minio, log, appCtx)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		appCancel()
		return nil, e.Wrap(op, err)
	}
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		qdrantCancel()
		appCancel()
		return nil, e.Wrap(op, err)
	}
	qdrantCancel()
	cl.Add(func(ctx context.Context) error {
		return qdrantClient.Client.Close()
	})

	embRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		appCancel()
		return nil, e.Wrap(op, err)
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, log)

	ml := ml_service.NewMLService(cfg.Ml, log)
	fetcher := imaging.NewFetcher(cfg.Search.FetchTimeout)

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		appCancel()
		return nil, e.Wrap(op, err)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		// Продюсер переживёт недоступный брокер, события будут теряться с логами
		log.Warnf("kafka topic is not ready: %v", err)
	}
	cl.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	productUC := usecase.NewProductUC(
		productRepo,
		categoryRepo,
		db.Pool,
		ml,
		imagesInfra,
		embRepo,
		producer,
		log,
		cacheRepo,
	)

	searchUC := usecase.NewSearchUseCase(
		productRepo,
		productUC,
		ml,
		imagesInfra,
		fetcher,
		cfg.Search,
		log,
	)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(productUC, searchUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)

	return &App{
		cfg:         cfg,
		logger:      log,
		httpSrv:     httpSrv,
		closer:      cl,
		imagesInfra: imagesInfra,
		appCancel:   appCancel,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до сигнала завершения
// или фатальной ошибки сервера.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.imagesInfra.WaitForCleanup(shutdownCtx); err != nil {
		a.logger.Warnf("MinIO cleanup error: %v", err)
	}
	a.appCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("shutdown finished with errors: %v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
