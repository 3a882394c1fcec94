package app

import (
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/basylab/balug/internal/config"
	"github.com/basylab/balug/internal/db"
	"github.com/basylab/balug/internal/middleware"
	"github.com/basylab/balug/internal/repository"
	"github.com/basylab/balug/internal/service"
)

type App struct {
	Cfg                  *config.Config
	DB                   *sqlx.DB
	UserService          *service.UserService
	EmailService         *service.EmailService
	PasswordResetService *service.PasswordResetService
	AuthRateLimiter      *middleware.RateLimiter
}

type Options struct {
	// SkipMigrations leaves the schema alone, for commands that manage it themselves
	SkipMigrations bool
}

func New(cfg *config.Config, opts Options) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	if !opts.SkipMigrations {
		err = db.RunMigrations(database.DB, cfg.DBDriver)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	policy, err := service.NewResetPolicy(ResetParams(cfg))
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppName,
		cfg.SupportEmail,
		cfg.PasswordResetCodeTTL,
		cfg.IsDevelopment(),
	)
	hasher := service.NewPasswordHasher(cfg.PasswordResetBcryptCost)
	codes, err := codeProvider(cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	userService := service.NewUserService(userRepository, hasher)
	passwordResetService := service.NewPasswordResetService(
		userRepository,
		codes,
		emailService,
		hasher,
		policy,
		service.SystemClock{},
	)

	return &App{
		Cfg:                  cfg,
		DB:                   database,
		UserService:          userService,
		EmailService:         emailService,
		PasswordResetService: passwordResetService,
		AuthRateLimiter:      middleware.NewRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst),
	}, nil
}

func codeProvider(cfg *config.Config) (service.CodeProvider, error) {
	totp := service.NewTOTPService(cfg.AppName, cfg.PasswordResetCodeTTL, cfg.PasswordResetCodeDigits)
	if cfg.PasswordResetSecretKey == "" {
		return totp, nil
	}

	key, err := hex.DecodeString(cfg.PasswordResetSecretKey)
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_SECRET_KEY: %w", err)
	}
	return service.NewSealedCodeProvider(totp, key)
}

// ResetParams maps the password reset settings onto the policy parameters.
func ResetParams(cfg *config.Config) service.ResetParams {
	return service.ResetParams{
		CodeTTL:         cfg.PasswordResetCodeTTL,
		ResendCooldown:  cfg.PasswordResetResendCooldown,
		MaxResends:      cfg.PasswordResetMaxResends,
		BlockDuration:   cfg.PasswordResetBlockDuration,
		MaxCodeAttempts: cfg.PasswordResetMaxCodeAttempts,
		ThrottleDelays:  cfg.PasswordResetThrottleDelays,
	}
}

func (a *App) Close() error {
	if a.AuthRateLimiter != nil {
		a.AuthRateLimiter.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
