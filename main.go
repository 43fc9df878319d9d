package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/pixelharbor/imageconvbackend/cache"
	"github.com/pixelharbor/imageconvbackend/config"
	"github.com/pixelharbor/imageconvbackend/conversion"
	"github.com/pixelharbor/imageconvbackend/database"
	"github.com/pixelharbor/imageconvbackend/handlers"
	"github.com/pixelharbor/imageconvbackend/media"
	"github.com/pixelharbor/imageconvbackend/quota"
	"github.com/pixelharbor/imageconvbackend/repository"
	"github.com/pixelharbor/imageconvbackend/rewards"
	"github.com/pixelharbor/imageconvbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.UploadsPath, cfg.ConvertedPath, cfg.TempPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	redisClient, err := database.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize redis: %v", err)
	}
	defer redisClient.Close()

	storeSubDirs := map[media.Kind]string{
		media.KindUpload:    filepath.Base(cfg.UploadsPath),
		media.KindConverted: filepath.Base(cfg.ConvertedPath),
		media.KindTemp:      filepath.Base(cfg.TempPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.StorageRoot, storeSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}

	engine := media.NewEngine(cfg.WatermarkText)

	log.Printf("Initializing transform worker pool (Workers: %d, Queue Size: %d)...", cfg.NumTransformWorkers, cfg.TransformQueueSize)
	pool := workers.NewTransformPool(cfg.NumTransformWorkers, cfg.TransformQueueSize)
	defer pool.Stop()

	limits := quota.Limits{Free: cfg.FreeDailyLimit, Vip: cfg.VipDailyLimit, Svip: cfg.SvipDailyLimit}
	ledger := quota.NewRedisLedger(redisClient, limits)
	resultCache := cache.NewRedisCache(redisClient)

	conversionRepo := repository.NewConversionRepository(db)
	userRepo := repository.NewUserRepository(db)
	pointsRepo := repository.NewPointsRepository(db)

	rewardsSvc := rewards.NewPointsService(pointsRepo)

	svc := conversion.NewService(engine, mediaStore, pool, conversionRepo, ledger, resultCache, rewardsSvc, conversion.Options{
		ChargeFailedConversions: cfg.ChargeFailedConversions,
		ListCacheTTL:            cfg.ListCacheTTL,
		DetailCacheTTL:          cfg.DetailCacheTTL,
		AwardPoints:             cfg.ConvertAwardPoints,
	})

	log.Printf("Storage root: %s", cfg.StorageRoot)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Daily ceilings: free=%d vip=%d svip=%d", limits.Free, limits.Vip, limits.Svip)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Conversion-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	jwtSecret := []byte(cfg.JWTSecret)
	convertHandler := &handlers.ConvertHandler{Svc: svc, Store: mediaStore, Cfg: cfg}
	recordsHandler := &handlers.RecordsHandler{Svc: svc, Limits: limits}
	authHandler := &handlers.AuthHandler{UserRepo: userRepo, JWTSecret: jwtSecret}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/image", func(r chi.Router) {
			// conversion is public: anonymous callers are processed
			// transiently, authenticated ones get quota + history
			r.Method(http.MethodPost, "/convert",
				handlers.OptionalAuthMiddleware(userRepo, jwtSecret, http.HandlerFunc(convertHandler.Convert)))

			r.Get("/formats", convertHandler.Formats)

			r.Group(func(r chi.Router) {
				r.Use(func(next http.Handler) http.Handler {
					return handlers.AuthMiddleware(userRepo, jwtSecret, next)
				})
				r.Get("/limits", recordsHandler.LimitsInfo)
				r.Route("/records", func(r chi.Router) {
					r.Get("/", recordsHandler.List)
					r.Route("/{record_id}", func(r chi.Router) {
						r.Get("/", recordsHandler.Get)
						r.Delete("/", recordsHandler.Delete)
					})
				})
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
