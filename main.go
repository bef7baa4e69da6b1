package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uchkunrakhimow/auth-kit/handlers"
	"github.com/uchkunrakhimow/auth-kit/internal/authz"
	"github.com/uchkunrakhimow/auth-kit/internal/config"
	"github.com/uchkunrakhimow/auth-kit/internal/database"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
	"github.com/uchkunrakhimow/auth-kit/internal/oidc"
	"github.com/uchkunrakhimow/auth-kit/internal/passkeys"
	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
	"github.com/uchkunrakhimow/auth-kit/internal/storage"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
	"github.com/uchkunrakhimow/auth-kit/pkg/metrics"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

var startTime = time.Now()

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: oauth=%v mongo=%v redis=%v minio=%v",
		cfg.OAuth.Issuer != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	ctx := context.Background()

	// Redis first so both the rate limiter and the session store can
	// use it when configured.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Mongo with retry/backoff to tolerate startup races.
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
		}
	}

	// Repositories. Uniqueness lives in the store, so the Mongo path
	// must ensure its indexes before serving.
	var (
		userRepo    users.Repository
		passkeyRepo passkeys.Repository
		sessionRepo sessions.Repository
	)
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			logger.Fatalf("failed to ensure indexes: %v", err)
		}
		userRepo = users.NewMongoRepository(db.Collection(database.UsersCollection))
		passkeyRepo = passkeys.NewMongoRepository(db.Collection(database.PasskeysCollection))
		sessionRepo = sessions.NewMongoRepository(db.Collection(database.SessionsCollection))
	} else {
		logger.Warnf("MongoDB unavailable; using in-memory stores (data is lost on restart)")
		userRepo = users.NewMemoryRepository()
		passkeyRepo = passkeys.NewMemoryRepository()
		sessionRepo = sessions.NewMemoryRepository()
	}
	if cfg.Redis.Sessions && redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "session:")
		logger.Infof("using Redis for session storage")
	}

	userSvc := users.NewService(userRepo)
	passkeySvc := passkeys.NewService(passkeyRepo, userSvc)
	sessionSvc := sessions.NewService(sessionRepo)
	gate := authz.NewGate(userSvc)

	// OIDC verifier + code exchanger when an identity provider is
	// configured. ALLOW_INSECURE_TOKEN only skips signature checks in
	// integration runs.
	var (
		verifier  oidc.TokenVerifier
		exchanger handlers.CodeExchanger
		authURL   string
	)
	if cfg.OAuth.Issuer != "" && cfg.OAuth.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OAuth.Issuer, cfg.OAuth.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
			issuer := strings.TrimRight(cfg.OAuth.Issuer, "/")
			authURL = issuer + "/authorize"
			exchanger = handlers.NewCodeExchanger(cfg, authURL, issuer+"/token")
		}
	}
	if verifier == nil && strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warnf("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	// Avatar object store is optional.
	var avatars *storage.AvatarStore
	if cfg.MinIO.Endpoint != "" {
		avatars, err = storage.NewAvatarStore(cfg.MinIO)
		if err != nil {
			logger.Warnf("avatar store unavailable: %v", err)
			avatars = nil
		}
	}

	authn := middleware.SessionAuth(sessionSvc, cfg.Session.CookieName)
	adminOnly := middleware.RequireRole(gate, models.RoleAdmin)

	root := r.Group("")
	handlers.NewAuthHandler(cfg, userSvc, sessionSvc, verifier, exchanger, authURL).Register(root, authn)
	handlers.NewSessionsHandler(sessionSvc).Register(root, authn)
	handlers.NewPasskeysHandler(passkeySvc).Register(root, authn)
	handlers.NewUsersHandler(userSvc, avatars).Register(root, authn)
	handlers.NewRolesHandler(userSvc).Register(root, authn, adminOnly)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"mongo": mongoClient != nil,
			"redis": redisClient != nil || cfg.Redis.Host == "",
			"oidc":  verifier != nil || cfg.OAuth.Issuer == "",
		}
		if cfg.Redis.Sessions && redisClient == nil {
			ready = false
		}
		if cfg.OAuth.Issuer != "" && verifier == nil {
			ready = false
		}
		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting auth service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
