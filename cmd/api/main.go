package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"

	"github.com/yourusername/decoder-api/internal/config"
	"github.com/yourusername/decoder-api/internal/domain/repository"
	"github.com/yourusername/decoder-api/internal/handler"
	"github.com/yourusername/decoder-api/internal/middleware"
	memoryRepo "github.com/yourusername/decoder-api/internal/repository/memory"
	mongoRepo "github.com/yourusername/decoder-api/internal/repository/mongo"
	pgRepo "github.com/yourusername/decoder-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/decoder-api/internal/repository/redis"
	"github.com/yourusername/decoder-api/internal/service"
	"github.com/yourusername/decoder-api/pkg/auth"
	"github.com/yourusername/decoder-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Контекст жизненного цикла фоновых горутин приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем хранилище состояния по выбранному драйверу.
	// Redis клиент переиспользуется лимитером запросов, когда доступен.
	var store repository.BlobStore
	var redisClient goredis.UniversalClient

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
		if err != nil {
			log.Printf("Failed to connect to database: %v", err)
			os.Exit(1)
		}
		if err := database.MigrateDB(db); err != nil {
			log.Printf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
		store = pgRepo.NewBlobStore(db)
		log.Println("Хранилище состояния: PostgreSQL")

	case config.StorageRedis:
		redisClient, err = database.NewUniversalRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		store, err = redisRepo.NewBlobStore(redisClient)
		if err != nil {
			log.Printf("Failed to initialize Redis store: %v", err)
			os.Exit(1)
		}
		log.Println("Хранилище состояния: Redis")

	case config.StorageMongo:
		mongoClient, err := database.NewMongoClient(cfg.Mongo.URI)
		if err != nil {
			log.Printf("Failed to connect to MongoDB: %v", err)
			os.Exit(1)
		}
		defer func() {
			disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer disconnectCancel()
			if err := mongoClient.Disconnect(disconnectCtx); err != nil {
				log.Printf("Error disconnecting MongoDB: %v", err)
			}
		}()
		store, err = mongoRepo.NewBlobStore(mongoClient, cfg.Mongo.DBName)
		if err != nil {
			log.Printf("Failed to initialize Mongo store: %v", err)
			os.Exit(1)
		}
		log.Println("Хранилище состояния: MongoDB")

	default:
		store = memoryRepo.NewBlobStore()
		log.Println("Хранилище состояния: память процесса (данные не переживают перезапуск)")
	}

	// Сервис отправки писем с промокодами
	var emailService service.EmailService
	if cfg.Email.Enabled {
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
		log.Println("Отправка писем с промокодами включена")
	} else {
		emailService = &service.NoopEmailService{}
	}

	// Токены администратора подписываются случайным ключом процесса:
	// после перезапуска все выданные токены теряют силу.
	tokenService, err := auth.NewTokenService(time.Duration(cfg.Admin.TokenTTLMinutes) * time.Minute)
	if err != nil {
		log.Printf("Failed to initialize token service: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервисы
	questionService := service.NewQuestionService(store)
	leaderboardService := service.NewLeaderboardService(
		store,
		time.Duration(cfg.Quiz.CooldownHours)*time.Hour,
		cfg.Quiz.ExemptIdentities,
	)
	redeemService := service.NewRedeemService(store, emailService)
	settingsService := service.NewSettingsService(store)
	quizService := service.NewQuizService(ctx, questionService, leaderboardService, redeemService, cfg.Quiz.QuestionSeconds)
	authService := service.NewAuthService(
		store,
		tokenService,
		cfg.Admin.DefaultUsername,
		cfg.Admin.DefaultPassword,
		cfg.Admin.MaxFailures,
		cfg.Admin.LockoutSeconds,
	)

	// Инициализируем обработчики
	quizHandler := handler.NewQuizHandler(quizService, questionService, leaderboardService, settingsService)
	adminHandler := handler.NewAdminHandler(authService, questionService, leaderboardService, redeemService, settingsService)
	wsHandler := handler.NewWSHandler(quizService, cfg.CORS.AllowedOrigins)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	allowedOrigins := cfg.CORS.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Статические файлы админ-панели
	router.StaticFS("/admin", http.Dir("./static/admin"))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Публичные маршруты
		api.GET("/settings", quizHandler.GetSettings)
		api.GET("/questions/count", quizHandler.GetQuestionCount)
		api.GET("/leaderboard", quizHandler.GetLeaderboard)

		quiz := api.Group("/quiz")
		{
			quiz.POST("/start", rateLimiter.LimitByIP(middleware.QuizStartRateLimitConfig()), quizHandler.StartQuiz)
			quiz.GET("/:sessionId/current", quizHandler.GetCurrentQuestion)
			quiz.POST("/:sessionId/answer", quizHandler.SubmitAnswer)
			quiz.GET("/:sessionId/summary", quizHandler.GetSummary)
		}

		// Панель администратора
		admin := api.Group("/admin")
		{
			admin.POST("/login", rateLimiter.Limit(middleware.LoginRateLimitConfig()), adminHandler.Login)

			authed := admin.Group("")
			authed.Use(authMiddleware.RequireAdmin())
			{
				authed.POST("/password", adminHandler.ChangePassword)

				authed.GET("/questions", adminHandler.ListQuestions)
				authed.POST("/questions", adminHandler.CreateQuestion)
				authed.PUT("/questions/:id", adminHandler.UpdateQuestion)
				authed.DELETE("/questions/:id", adminHandler.DeleteQuestion)
				authed.POST("/questions/clear", adminHandler.ClearQuestions)
				authed.POST("/questions/preview", adminHandler.PreviewImport)
				authed.POST("/questions/import", adminHandler.ImportQuestions)
				authed.GET("/questions/export", adminHandler.ExportQuestions)

				authed.GET("/leaderboard", adminHandler.GetLeaderboard)
				authed.GET("/leaderboard/export", adminHandler.ExportLeaderboard)
				authed.POST("/leaderboard/reset", adminHandler.ResetLeaderboard)

				authed.GET("/redeem", adminHandler.GetRedeemPool)
				authed.POST("/redeem/regenerate", adminHandler.RegenerateRedeemCodes)
				authed.POST("/redeem/reset", adminHandler.ResetRedeemGiven)

				authed.PUT("/settings", adminHandler.UpdateSettings)
			}
		}
	}

	// WebSocket маршрут живой ленты сессии
	router.GET("/ws/quiz", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// После получения сигнала SIGINT или SIGTERM вызываем cancel()
	// для завершения горутин сервисов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	// Контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
