package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"tea_refill/internal/api"
	"tea_refill/internal/api/handler"
	"tea_refill/internal/api/middleware"
	"tea_refill/internal/config"
	"tea_refill/internal/idgen"
	"tea_refill/internal/iot"
	"tea_refill/internal/notify"
	"tea_refill/internal/repository"
	"tea_refill/internal/repository/memory"
	"tea_refill/internal/repository/postgresql"
	"tea_refill/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
)

type storage struct {
	store     repository.Store
	users     repository.UserRepository
	eventLogs repository.MachineEventsLogRepository
	db        *sql.DB
}

func openStorage(cfg *config.Config) storage {
	if cfg.StoreDriver == "memory" {
		store := memory.NewStore()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				log.Fatalf("Cannot open seed file: %v", err)
			}
			if err := store.LoadSeed(f); err != nil {
				log.Fatalf("Cannot load seed file: %v", err)
			}
			f.Close()
			log.Printf("Memory store seeded from %s", cfg.SeedFile)
		}
		log.Println("Using in-memory store; data is lost on restart.")
		return storage{store: store, users: store.Users(), eventLogs: store.EventLogs()}
	}

	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	log.Println("Connected to database.")
	if err := postgresql.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	return storage{
		store:     postgresql.NewPgStore(db),
		users:     postgresql.NewPgUserRepository(db),
		eventLogs: postgresql.NewPgMachineEventsLogRepository(db),
		db:        db,
	}
}

func main() {
	// 1. Configuration
	cfg := config.Load()
	log.Println("Configuration loaded.")

	// 2. Storage
	st := openStorage(cfg)
	if st.db != nil {
		defer st.db.Close()
	}

	// 3. Request id sequence
	var requestIDs idgen.Sequence
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Cannot reach redis at %s: %v", cfg.RedisAddr, err)
		}
		requestIDs = idgen.NewRedisSequence(rdb, "tea_refill:request_id", idgen.RequestIDs, st.store.Requests().LastRequestID)
		log.Printf("Request ids issued by redis at %s", cfg.RedisAddr)
	}

	// 4. AWS SDK config and clients
	awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("Cannot load AWS SDK config: %v", err)
	}
	log.Println("AWS SDK config loaded for region:", cfg.AWSRegion)

	var machinePublisher service.MachinePublisher
	if cfg.IoTDataEndpoint != "" {
		endpointWithSchema := cfg.IoTDataEndpoint
		if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
			endpointWithSchema = "https://" + endpointWithSchema
		}
		iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
			o.BaseEndpoint = aws.String(endpointWithSchema)
		})
		machinePublisher = notify.NewIoTMachinePublisher(iotDataPlaneClient, cfg.MachineTopicPrefix)
	} else {
		log.Println("WARNING: IOT_DATA_ENDPOINT is not set. Machine notifications will fail.")
	}

	// 5. Push delivery
	var pushSender service.PushSender = notify.LogSender{}
	var tokens service.TokenDirectory = notify.NewUserTokenDirectory(st.users)
	if cfg.FirebaseCredentialsFile != "" {
		ctx := context.Background()
		app, err := notify.NewFirebaseApp(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseProjectID)
		if err != nil {
			log.Fatalf("Cannot initialise firebase: %v", err)
		}
		fcm, err := notify.NewFCMSender(ctx, app)
		if err != nil {
			log.Fatalf("Cannot initialise FCM: %v", err)
		}
		pushSender = fcm
		if cfg.TokenDirectory == "firestore" {
			fsTokens, err := notify.NewFirestoreTokenDirectory(ctx, app)
			if err != nil {
				log.Fatalf("Cannot initialise firestore: %v", err)
			}
			defer fsTokens.Close()
			tokens = fsTokens
		}
		log.Printf("Push notifications via FCM, tokens from %s", cfg.TokenDirectory)
	} else {
		log.Println("WARNING: FIREBASE_CREDENTIALS_FILE is not set. Push notifications are only logged.")
	}

	// 6. Event log and websocket feed
	var events service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaLog := notify.NewKafkaEventLog(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaLog.Close()
		events = kafkaLog
		log.Printf("Request events appended to kafka topic %s", cfg.KafkaTopic)
	}

	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket manager started.")

	// 7. Services
	dispatcher := service.NewNotificationDispatcher(tokens, pushSender, machinePublisher, events, webSocketManager)
	authService := service.NewAuthService(st.users, cfg.JWTSecret, cfg.JWTExpirationHours)
	requestService := service.NewRequestService(st.store, requestIDs)
	kitchenService := service.NewKitchenService(st.store)
	iotService := service.NewIoTService(requestService, dispatcher, st.eventLogs)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 8. SQS consumer
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSEventQueueURL == "" {
		log.Println("WARNING: SQS_EVENT_QUEUE_URL is not set. The SQS consumer will not run.")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg, iotService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(consumerCtx)
			log.Println("SQS consumer stopped.")
		}()
	}

	// 9. HTTP
	router := api.SetupRouter(api.Services{
		Auth:       authService,
		Requests:   requestService,
		Kitchens:   kitchenService,
		Dispatcher: dispatcher,
	}, authMiddleware, webSocketManager)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}

	if cfg.SQSEventQueueURL != "" {
		log.Println("Waiting for the SQS consumer to stop (up to 5 seconds)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("SQS consumer stopped cleanly.")
		case <-time.After(5 * time.Second):
			log.Println("SQS consumer did not stop in time.")
		}
	}

	log.Println("Server stopped.")
}
