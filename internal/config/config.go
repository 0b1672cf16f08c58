package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Поддерживаемые драйверы хранилища состояния.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMongo    = "mongo"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Quiz     QuizConfig
	Admin    AdminConfig
	Email    EmailConfig
	CORS     CORSConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig выбирает бэкенд хранилища состояния
type StorageConfig struct {
	// Driver: memory, postgres, redis или mongo. По умолчанию memory.
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`
}

// MongoConfig содержит настройки подключения к MongoDB
type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbname"`
}

// QuizConfig содержит параметры прохождения викторины
type QuizConfig struct {
	// QuestionSeconds: время на один вопрос в секундах. По умолчанию 15.
	QuestionSeconds int `mapstructure:"question_seconds"`

	// CooldownHours: окно между попытками одного участника. По умолчанию 48.
	CooldownHours int `mapstructure:"cooldown_hours"`

	// ExemptIdentities: идентификаторы (email или имя), на которые окно не распространяется.
	ExemptIdentities []string `mapstructure:"exempt_identities"`
}

// AdminConfig содержит настройки администратора
type AdminConfig struct {
	// DefaultUsername/DefaultPassword: учетные данные, которыми засевается
	// хранилище при первом запуске. Если пароль не задан и в хранилище
	// ничего нет, вход администратора невозможен.
	DefaultUsername string `mapstructure:"default_username"`
	DefaultPassword string `mapstructure:"default_password"`

	// MaxFailures: число подряд неудачных попыток до блокировки. По умолчанию 5.
	MaxFailures int `mapstructure:"max_failures"`

	// LockoutSeconds: длительность блокировки входа. По умолчанию 30.
	LockoutSeconds int `mapstructure:"lockout_seconds"`

	// TokenTTLMinutes: время жизни токена администратора. По умолчанию 60.
	TokenTTLMinutes int `mapstructure:"token_ttl_minutes"`
}

// EmailConfig содержит настройки отправки писем с промокодами
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// CORSConfig содержит список разрешенных origin
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 10)
	vip.SetDefault("server.write_timeout", 10)
	vip.SetDefault("storage.driver", StorageMemory)
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("mongo.dbname", "decoder")
	vip.SetDefault("quiz.question_seconds", 15)
	vip.SetDefault("quiz.cooldown_hours", 48)
	vip.SetDefault("admin.max_failures", 5)
	vip.SetDefault("admin.lockout_seconds", 30)
	vip.SetDefault("admin.token_ttl_minutes", 60)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	vip.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	vip.BindEnv("storage.driver", "STORAGE_DRIVER")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("mongo.uri", "MONGO_URI")
	vip.BindEnv("mongo.dbname", "MONGO_DBNAME")

	vip.BindEnv("quiz.question_seconds", "QUIZ_QUESTION_SECONDS")
	vip.BindEnv("quiz.cooldown_hours", "QUIZ_COOLDOWN_HOURS")
	vip.BindEnv("quiz.exempt_identities", "QUIZ_EXEMPT_IDENTITIES")

	vip.BindEnv("admin.default_username", "ADMIN_DEFAULT_USERNAME")
	vip.BindEnv("admin.default_password", "ADMIN_DEFAULT_PASSWORD")
	vip.BindEnv("admin.max_failures", "ADMIN_MAX_FAILURES")
	vip.BindEnv("admin.lockout_seconds", "ADMIN_LOCKOUT_SECONDS")
	vip.BindEnv("admin.token_ttl_minutes", "ADMIN_TOKEN_TTL_MINUTES")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "EMAIL_RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	// 3. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит значения из файла и env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Storage Driver: %s", cfg.Storage.Driver)
		log.Printf("Quiz Question Seconds: %d", cfg.Quiz.QuestionSeconds)
		log.Printf("Quiz Cooldown Hours: %d", cfg.Quiz.CooldownHours)
		log.Printf("Quiz Exempt Identities: %d", len(cfg.Quiz.ExemptIdentities))
		log.Printf("Admin Default Username Set: %t", cfg.Admin.DefaultUsername != "")
		log.Printf("Admin Default Password Set: %t", cfg.Admin.DefaultPassword != "")
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка параметров
	switch cfg.Storage.Driver {
	case StorageMemory:
		// Внешних подключений не требуется
	case StoragePostgres:
		if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
			return nil, fmt.Errorf("postgres storage requires database.host, database.dbname and database.user (check DATABASE_* env vars)")
		}
	case StorageRedis:
		if len(cfg.Redis.Addrs) == 0 && cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis storage requires redis.addrs or redis.addr (check REDIS_ADDRS env var)")
		}
	case StorageMongo:
		if cfg.Mongo.URI == "" {
			return nil, fmt.Errorf("mongo storage requires mongo.uri (check MONGO_URI env var)")
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}

	if cfg.Quiz.QuestionSeconds <= 0 {
		return nil, fmt.Errorf("quiz.question_seconds must be positive")
	}
	if cfg.Quiz.CooldownHours < 0 {
		return nil, fmt.Errorf("quiz.cooldown_hours must not be negative")
	}
	if cfg.Email.Enabled && (cfg.Email.ResendAPIKey == "" || cfg.Email.From == "") {
		return nil, fmt.Errorf("email.enabled requires email.resend_api_key and email.from (check EMAIL_* env vars)")
	}

	return &cfg, nil
}
