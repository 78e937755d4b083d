package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// StoreDriver is "postgres" or "memory".
	StoreDriver string
	SeedFile    string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion          string
	SQSEventQueueURL   string
	IoTDataEndpoint    string
	MachineTopicPrefix string

	JWTSecret          string
	JWTExpirationHours time.Duration

	FirebaseCredentialsFile string
	FirebaseProjectID       string
	// TokenDirectory is "postgres" or "firestore".
	TokenDirectory string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	jwtExpHours, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	var kafkaBrokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			kafkaBrokers = append(kafkaBrokers, b)
		}
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		SeedFile:    getEnv("SEED_FILE", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "tea_refill"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:          getEnv("AWS_REGION", "ap-south-1"),
		SQSEventQueueURL:   getEnv("SQS_EVENT_QUEUE_URL", ""),
		IoTDataEndpoint:    getEnv("IOT_DATA_ENDPOINT", ""),
		MachineTopicPrefix: getEnv("MACHINE_TOPIC_PREFIX", "tea/machines"),

		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,

		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		TokenDirectory:          getEnv("TOKEN_DIRECTORY", "postgres"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "refill.request.events"),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable '%s' not set, using default: '%s'", key, fallback)
	return fallback
}
