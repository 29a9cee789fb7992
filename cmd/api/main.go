package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timeintern/internal/attendance"
	"timeintern/internal/auth"
	"timeintern/internal/config"
	"timeintern/internal/display"
	"timeintern/internal/httpmiddleware"
	"timeintern/internal/metrics"
	"timeintern/internal/queue"
	"timeintern/internal/store"
	"timeintern/internal/token"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var (
		db       *store.DB
		repo     *attendance.Repository
		attStore attendance.Store
	)
	if cfg.StoreBackend == "memory" {
		attStore = attendance.NewMemoryStore()
		log.Println("using in-memory attendance store")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = attendance.NewRepository(db.Client)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return err
		}
		attStore = repo
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "timeintern:scans")
	}

	att := attendance.NewService(attStore)
	displays := display.NewManager(cfg.QRTTL, cfg.QRCountdownTick, func(token.Token) {
		metrics.TokensGenerated.Inc()
	})
	defer displays.StopAll()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil || cfg.StoreBackend == "memory"
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/users/register", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			FullName string `json:"full_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		role := "intern"
		if cfg.AdminEmail != "" && req.Email == cfg.AdminEmail {
			role = auth.RoleAdmin
		}

		var usr attendance.User
		if repo != nil {
			var err error
			usr, err = repo.UpsertUser(c.Request.Context(), req.Email, req.FullName, role)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
				return
			}
		} else {
			usr = attendance.User{ID: req.Email, Email: req.Email, FullName: req.FullName, Role: role}
		}

		tokens, err := auth.Issue(usr.ID, usr.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":          usr,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/attendance/toggle", func(c *gin.Context) {
		var req struct {
			UserID     string `json:"user_id" binding:"required"`
			OccurredAt int64  `json:"occurred_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		if claims.Role != auth.RoleAdmin && claims.Subject != req.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}

		when := time.Now().UTC()
		if req.OccurredAt > 0 {
			when = time.UnixMilli(req.OccurredAt).UTC()
		}

		action, rec, err := att.Toggle(c.Request.Context(), req.UserID, when)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance update failed"})
			return
		}
		metrics.Toggles.WithLabelValues(action).Inc()

		c.JSON(http.StatusOK, gin.H{"action": action, "record": rec})
	})

	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		scan, err := token.Validate(req.Payload, "", now, cfg.QRTTL)
		if err != nil {
			status := http.StatusBadRequest
			outcome := "malformed"
			if errors.Is(err, token.ErrExpired) {
				status, outcome = http.StatusGone, "expired"
			}
			metrics.Scans.WithLabelValues(outcome).Inc()
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		// Scanners track their own last nonce; this claim closes the
		// window for the same fresh code arriving through a second
		// client or server worker.
		fresh, err := redisClient.ClaimNonce(c.Request.Context(), scan.Nonce, cfg.QRTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan check failed"})
			return
		}
		if !fresh {
			metrics.Scans.WithLabelValues("duplicate").Inc()
			publishScan(c.Request.Context(), q, attendance.ScanEvent{
				UserID: scan.UserID, Nonce: scan.Nonce, Outcome: "duplicate", OccurredAt: now,
			})
			c.JSON(http.StatusConflict, gin.H{"error": token.ErrDuplicateScan.Error()})
			return
		}

		action, rec, err := att.Toggle(c.Request.Context(), scan.UserID, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance update failed"})
			return
		}
		metrics.Scans.WithLabelValues("ok").Inc()
		metrics.Toggles.WithLabelValues(action).Inc()
		publishScan(c.Request.Context(), q, attendance.ScanEvent{
			UserID: scan.UserID, Nonce: scan.Nonce, Outcome: "ok", Action: action, OccurredAt: now,
		})

		c.JSON(http.StatusOK, gin.H{"action": action, "record": rec})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		userID := c.Query("user_id")
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := att.List(c.Request.Context(), userID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	adminGroup := authGroup.Group("", auth.RequireRole(auth.RoleAdmin))

	adminGroup.GET("/qr", func(c *gin.Context) {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		rot, err := displays.Rotator(claims.Subject)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		img, err := token.Image(rot.Current(), token.DefaultImageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", img)
	})

	adminGroup.GET("/qr/meta", func(c *gin.Context) {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		rot, err := displays.Rotator(claims.Subject)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cur := rot.Current()
		c.JSON(http.StatusOK, gin.H{
			"code":          cur.Code,
			"issued_at":     cur.Timestamp,
			"expires_in_ms": rot.Remaining().Milliseconds(),
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func publishScan(ctx context.Context, q queue.Queue, evt attendance.ScanEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("scan event marshal failed: %v", err)
		return
	}
	if err := q.Publish(ctx, queue.Message{Type: "scan", Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
