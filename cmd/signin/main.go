package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-signin/migrations"
	"github.com/tendant/simple-signin/pkg/config"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/loginapi"
	"github.com/tendant/simple-signin/pkg/loginflow"
	"github.com/tendant/simple-signin/pkg/notification"
	"github.com/tendant/simple-signin/pkg/sessionstate"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
)

type Config struct {
	AppConfig     app.AppConfig
	SignInConfig  config.SignInConfig
	DbConfig      config.DatabaseConfig
	RedisConfig   config.RedisConfig
	StorageConfig config.StorageConfig
	OIDCConfig    config.OIDCConfig
	JwtConfig     config.JWTConfig
	EmailConfig   config.EmailConfig
	TwilioConfig  config.TwilioConfig
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded", "err", err)
	}

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed reading config", "err", err)
		os.Exit(-1)
	}
	if err := cfg.SignInConfig.Validate(); err != nil {
		slog.Error("Invalid sign-in config", "err", err)
		os.Exit(-1)
	}

	ctx := context.Background()
	codeTTL, _ := cfg.SignInConfig.ParseCodeTTL()
	federatedTimeout, _ := cfg.SignInConfig.ParseFederatedTimeout()

	sessionExpiry, err := cfg.JwtConfig.ParseSessionExpiry()
	if err != nil {
		slog.Error("Invalid session expiry", "value", cfg.JwtConfig.SessionExpiry, "err", err)
		os.Exit(-1)
	}
	attemptExpiry, err := cfg.JwtConfig.ParseAttemptExpiry()
	if err != nil {
		slog.Error("Invalid attempt expiry", "value", cfg.JwtConfig.AttemptExpiry, "err", err)
		os.Exit(-1)
	}

	var pool *pgxpool.Pool
	if cfg.StorageConfig.NeedsPostgres() {
		pool, err = pgxpool.New(ctx, cfg.DbConfig.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "user", cfg.DbConfig.User, "schema", cfg.DbConfig.Schema)
			os.Exit(-1)
		}
		defer pool.Close()

		if err := migrations.UpPool(ctx, pool); err != nil {
			slog.Error("Failed applying migrations", "err", err)
			os.Exit(-1)
		}
	}

	var redisClient *redis.Client
	if cfg.StorageConfig.CodeStore == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", cfg.RedisConfig.Addr, "err", err)
			os.Exit(-1)
		}
	}

	users, err := login.NewUserStore(cfg.StorageConfig.UserStore, login.RepositoryConfig{Pool: pool},
		login.WithMaxFailedLoginCount(cfg.SignInConfig.MaxFailedAttempts))
	if err != nil {
		slog.Error("Failed creating user store", "type", cfg.StorageConfig.UserStore, "err", err)
		os.Exit(-1)
	}
	codes, err := twofa.NewCodeStore(cfg.StorageConfig.CodeStore, twofa.RepositoryConfig{Pool: pool, Redis: redisClient},
		twofa.WithCodeTTL(codeTTL))
	if err != nil {
		slog.Error("Failed creating code store", "type", cfg.StorageConfig.CodeStore, "err", err)
		os.Exit(-1)
	}
	invites, err := signup.NewInviteStore(cfg.StorageConfig.InviteStore, signup.RepositoryConfig{Pool: pool})
	if err != nil {
		slog.Error("Failed creating invite store", "type", cfg.StorageConfig.InviteStore, "err", err)
		os.Exit(-1)
	}

	smtpConfig := notification.SMTPConfig{}
	copier.Copy(&smtpConfig, &cfg.EmailConfig)
	opts := []notification.NotificationManagerOption{
		notification.WithSMTP(smtpConfig),
		notification.WithDefaultTemplates(),
	}
	if cfg.TwilioConfig.IsConfigured() {
		twilioConfig := notification.TwilioConfig{}
		copier.Copy(&twilioConfig, &cfg.TwilioConfig)
		opts = append(opts, notification.WithTwilio(twilioConfig))
	} else {
		slog.Warn("Twilio is not configured, sms codes cannot be delivered")
	}
	notificationManager, err := notification.NewNotificationManagerWithOptions(opts...)
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(-1)
	}

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)
	cookies := sessionstate.NewCookieSetter(cfg.JwtConfig.CookieHttpOnly, cfg.JwtConfig.CookieSecure)
	attempts := sessionstate.NewStore(
		sessionstate.NewCodec(cfg.JwtConfig.Secret,
			sessionstate.WithExpiry(attemptExpiry),
			sessionstate.WithIssuer(cfg.JwtConfig.Issuer)),
		cookies,
	)

	handleOpts := []loginapi.Option{
		loginapi.WithUserStore(users),
		loginapi.WithAttemptStore(attempts),
		loginapi.WithTokenAuth(tokenAuth),
		loginapi.WithCookieSetter(cookies),
		loginapi.WithSessionExpiry(sessionExpiry),
		loginapi.WithInviteStore(invites),
	}

	var resolver loginflow.AccountResolver
	if cfg.SignInConfig.FederationEnabled {
		if !cfg.OIDCConfig.IsConfigured() {
			slog.Error("Federation is enabled but the identity provider is not configured")
			os.Exit(-1)
		}
		providerConfig := externalprovider.ProviderConfig{}
		copier.Copy(&providerConfig, &cfg.OIDCConfig)
		oidcClient, err := externalprovider.NewOIDCClient(ctx, providerConfig)
		if err != nil {
			slog.Error("Failed creating oidc client", "issuer", cfg.OIDCConfig.IssuerURL, "err", err)
			os.Exit(-1)
		}
		resolver = externalprovider.NewResolver(oidcClient, users, externalprovider.WithExchangeTimeout(federatedTimeout))
		handleOpts = append(handleOpts, loginapi.WithAuthorizer(oidcClient))
		slog.Info("Federated sign-in enabled", "issuer", cfg.OIDCConfig.IssuerURL)
	}

	flow := loginflow.NewLoginFlowService(loginflow.ServiceDependencies{
		Credentials:       login.NewCredentialValidator(users),
		Users:             users,
		Resolver:          resolver,
		Invitations:       signup.NewInvitationService(invites),
		Codes:             twofa.NewCodeService(codes, notificationManager, twofa.WithCodeExpiry(codeTTL)),
		Verifier:          twofa.NewVerifier(codes),
		FederationEnabled: cfg.SignInConfig.FederationEnabled,
		MaxFailedAttempts: cfg.SignInConfig.MaxFailedAttempts,
	})
	handleOpts = append(handleOpts, loginapi.WithLoginFlowService(flow))

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	prefix := config.GetEnvOrDefault("SIGNIN_API_PREFIX", "/api/signin")
	server.R.Mount(prefix, loginapi.Routes(loginapi.NewHandle(handleOpts...)))

	slog.Info("Sign-in service starting", "user_store", cfg.StorageConfig.UserStore,
		"code_store", cfg.StorageConfig.CodeStore, "invite_store", cfg.StorageConfig.InviteStore)
	server.Run()
}
