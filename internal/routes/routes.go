package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/naggery/naggery/internal/account"
	"github.com/naggery/naggery/internal/apikeys"
	"github.com/naggery/naggery/internal/auth"
	"github.com/naggery/naggery/internal/config"
	"github.com/naggery/naggery/internal/metrics"
	"github.com/naggery/naggery/internal/middleware"
	"github.com/naggery/naggery/internal/notification"
	"github.com/naggery/naggery/internal/ratelimit"
	"github.com/naggery/naggery/internal/security"
	"github.com/naggery/naggery/internal/twofactor"
	"github.com/naggery/naggery/internal/vault"
	"github.com/naggery/naggery/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Security
	// Now overrides the clock of every service. Nil means time.Now.
	Now func() time.Time
	// Notifier replaces the email and SMS transports when set.
	Notifier notification.Notifier
}

// Services are the wired components, returned so the caller can run
// background maintenance against the same stores.
type Services struct {
	Security *security.Service
	APIKeys  *apikeys.Service
	Verifier *verification.Manager
	Tokens   *auth.Issuer
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Services, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	svc, err := buildServices(d)
	if err != nil {
		return Services{}, err
	}

	ipLimit, err := middleware.IPRateLimit(d.Cache, int64(d.Cfg.GlobalRateLimit))
	if err != nil {
		return Services{}, fmt.Errorf("ip rate limiter: %w", err)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1", ipLimit)
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  d.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var signupGuards []fiber.Handler
	if d.Cache != nil {
		signupGuards = append(signupGuards, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	session := middleware.SessionAuth(svc.Tokens)

	secHandler := security.NewHandler(svc.Security)
	RegisterAuthRoutes(api, secHandler, signupGuards...)
	RegisterVerificationRoutes(api, secHandler)
	RegisterTwoFactorRoutes(api, secHandler, session)
	RegisterSecurityRoutes(api, secHandler, apikeys.NewHandler(svc.APIKeys), session)

	return svc, nil
}

func buildServices(d Deps) (Services, error) {
	encKey, err := secretOrGenerated(d, "ENCRYPTION_KEY", d.Cfg.EncryptionKey)
	if err != nil {
		return Services{}, err
	}
	jwtSecret, err := secretOrGenerated(d, "JWT_SECRET", d.Cfg.JWTSecret)
	if err != nil {
		return Services{}, err
	}

	cipher, err := vault.NewCipher(encKey)
	if err != nil {
		return Services{}, fmt.Errorf("vault: %w", err)
	}
	tokens, err := auth.NewIssuer(jwtSecret, d.Cfg.AppName, d.Cfg.SessionTTL, d.Now)
	if err != nil {
		return Services{}, fmt.Errorf("token issuer: %w", err)
	}

	var (
		users    account.Repository
		codes    twofactor.BackupCodeRepository
		requests verification.Repository
		keys     apikeys.Repository
	)
	if d.DB != nil {
		users = account.NewPostgresRepository(d.DB)
		codes = twofactor.NewPostgresBackupCodeRepository(d.DB)
		requests = verification.NewPostgresRepository(d.DB)
		keys = apikeys.NewPostgresRepository(d.DB)
	} else {
		users = account.NewMemoryRepository()
		codes = twofactor.NewMemoryBackupCodeRepository()
		requests = verification.NewMemoryRepository()
		keys = apikeys.NewMemoryRepository()
	}

	policies := ratelimit.DefaultPolicies()
	if d.Cfg.RateLimitPolicyFile != "" {
		if policies, err = ratelimit.LoadPolicyFile(d.Cfg.RateLimitPolicyFile); err != nil {
			return Services{}, err
		}
	}
	var store ratelimit.Store
	if d.Cache != nil {
		store = ratelimit.NewRedisStore(d.Cache)
	} else {
		store = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(store,
		ratelimit.WithClock(d.Now),
		ratelimit.WithPolicies(policies),
		ratelimit.WithObserver(d.Metrics.ObserveRateLimit),
	)

	var transport, smsTransport notification.Notifier
	switch {
	case d.Notifier != nil:
		transport, smsTransport = d.Notifier, d.Notifier
	case d.Cfg.SMTPHost != "":
		transport = notification.NewSMTPNotifier(d.Cfg.SMTPHost, d.Cfg.SMTPPort, d.Cfg.SMTPUser, d.Cfg.SMTPPassword, d.Cfg.SMTPFrom)
	default:
		transport = notification.NewLoggerNotifier(d.Logger)
	}
	if smsTransport == nil {
		// No SMS provider yet; codes go to the log transport.
		smsTransport = notification.NewLoggerNotifier(d.Logger)
	}

	verifier := verification.NewManager(requests, verification.WithClock(d.Now), verification.WithLogger(d.Logger))
	sec := security.NewService(security.Deps{
		Users:       users,
		BackupCodes: codes,
		Verifier:    verifier,
		Limiter:     limiter,
		Cipher:      cipher,
		Tokens:      tokens,
		Email:       notification.NewMailer(transport, d.Cfg.AppName, d.Cfg.PublicBaseURL, d.Logger),
		SMS:         notification.NewSMS(smsTransport, d.Cfg.AppName, d.Logger),
		Metrics:     d.Metrics,
		Logger:      d.Logger,
		Issuer:      d.Cfg.AppName,
		Now:         d.Now,
	})

	return Services{
		Security: sec,
		APIKeys:  apikeys.NewService(keys, cipher, d.Now, d.Logger),
		Verifier: verifier,
		Tokens:   tokens,
	}, nil
}

// secretOrGenerated returns value, or in development a random secret that
// lives as long as the process.
func secretOrGenerated(d Deps, name, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if !d.Cfg.IsDev() {
		return "", fmt.Errorf("%s must be set when APP_ENV=%s", name, d.Cfg.AppEnv)
	}
	generated, err := vault.RandomToken(32)
	if err != nil {
		return "", err
	}
	d.Logger.Warn("using a generated secret; data sealed with it is lost on restart", slog.String("name", name))
	return generated, nil
}
