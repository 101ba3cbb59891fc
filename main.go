package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/smartguardbackend/attendance"
	"github.com/camden-git/smartguardbackend/camera"
	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/config"
	"github.com/camden-git/smartguardbackend/database"
	"github.com/camden-git/smartguardbackend/enrollment"
	"github.com/camden-git/smartguardbackend/handlers"
	"github.com/camden-git/smartguardbackend/media"
	"github.com/camden-git/smartguardbackend/metrics"
	"github.com/camden-git/smartguardbackend/notify"
	"github.com/camden-git/smartguardbackend/repository"
	"github.com/camden-git/smartguardbackend/workers"
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

	storagePaths := []string{cfg.DatasetPath, cfg.MediaStoragePath, cfg.AvatarsPath, filepath.Dir(cfg.DatabasePath)}
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
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	identityRepo := repository.NewIdentityRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	faceCatalog := catalog.New(cfg.EncodingsPath, cfg.MatchTolerance)
	if err := faceCatalog.Load(); err != nil {
		log.Fatalf("FATAL: Failed to load face catalog: %v", err)
	}

	detector := media.NewFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath)
	defer detector.Close()
	recognizer := media.NewFaceRecognitionModel(cfg.FaceRecModelPath, cfg.FaceRecModelName)
	defer recognizer.Close()

	runner := workers.NewRunner(cfg.JobQueueSize, cfg.NumJobWorkers)
	defer runner.Stop()

	sender := notify.NewShoutrrrSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, cfg.EmailSendTimeout)
	dispatcher := notify.NewDispatcher(identityRepo, sender, runner)

	controller := attendance.NewController(identityRepo, attendanceRepo, dispatcher, attendance.LogAnnouncer{}, cfg.Cooldown)
	if err := controller.RefreshRoleIndex(); err != nil {
		log.Fatalf("FATAL: Failed to build role index: %v", err)
	}

	encoder := enrollment.NewEncoder(cfg.DatasetPath, cfg.AvatarsPath, cfg.AvatarMaxSize, enrollment.ModelPaths{
		DetectorConfigPath:  cfg.FaceDNNNetConfigPath,
		DetectorModelPath:   cfg.FaceDNNNetModelPath,
		RecognizerModelPath: cfg.FaceRecModelPath,
		RecognizerModelName: cfg.FaceRecModelName,
	}, faceCatalog, identityRepo)

	cameraService := camera.NewService(camera.Options{
		DeviceID:       cfg.CameraDeviceID,
		FrameInterval:  cfg.FrameInterval,
		ReadTimeout:    cfg.CameraReadTimeout,
		DetectionScale: cfg.DetectionScale,
		CaptureDelay:   cfg.CaptureDelay,
	}, detector, recognizer, faceCatalog, controller.HandleDetection)
	if err := cameraService.Start(); err != nil {
		log.Fatalf("FATAL: Failed to start camera: %v", err)
	}
	defer cameraService.Stop()

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
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

	identityHandler := &handlers.IdentityHandler{
		IdentityRepo:   identityRepo,
		AttendanceRepo: attendanceRepo,
		Controller:     controller,
		Camera:         cameraService,
		Encoder:        encoder,
		Runner:         runner,
		DatasetPath:    cfg.DatasetPath,
		CaptureCount:   cfg.CaptureTargetCount,
	}
	photoHandler := &handlers.PhotoHandler{IdentityRepo: identityRepo, DatasetPath: cfg.DatasetPath}
	statsHandler := &handlers.StatsHandler{DB: sqlDB}
	cameraHandler := &handlers.CameraHandler{Camera: cameraService, Controller: controller}
	jobHandler := &handlers.JobHandler{Runner: runner}

	r.Route("/api", func(r chi.Router) {
		r.Route("/identities", func(r chi.Router) {
			r.Post("/", identityHandler.CreateIdentity)
			r.Get("/", identityHandler.ListIdentities)
			r.Route("/{identity_id}", func(r chi.Router) {
				r.Get("/", identityHandler.GetIdentity)
				r.Delete("/", identityHandler.DeleteIdentity)
				r.Post("/capture", identityHandler.StartCapture)
				r.Get("/photos", photoHandler.ListPhotos)
				r.Get("/attendance", identityHandler.ListAttendance)
			})
		})

		r.Post("/train", identityHandler.Retrain)
		r.Get("/stats", statsHandler.GetStats)

		r.Route("/camera", func(r chi.Router) {
			r.Get("/frame", cameraHandler.GetFrame)
			r.Get("/mode", cameraHandler.GetMode)
			r.Put("/mode", cameraHandler.SetMode)
			r.Get("/pending", cameraHandler.GetPending)
		})

		r.Get("/jobs/{job_id}", jobHandler.GetJob)
	})

	avatarSubDir := filepath.Base(cfg.AvatarsPath)
	r.Get(fmt.Sprintf("/%s/*", avatarSubDir), handlers.AssetServer(cfg.MediaStoragePath, avatarSubDir))
	log.Printf("Registered avatar server at /%s/*", avatarSubDir)

	r.Handle("/metrics", metrics.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down")
	_ = server.Close()
}
