package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/sabimarket/sabimarket-backend/internal/crashtracker"
	"github.com/sabimarket/sabimarket-backend/internal/message"
	"github.com/sabimarket/sabimarket-backend/internal/payment"
)

// Config holds every setting the commands read from the environment. A .env
// file in the working directory is loaded first when present.
type Config struct {
	Environment        string
	LogLevel           string
	Port               int
	CorsAllowedOrigins []string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTMaxAge time.Duration

	EscrowOwnerID  string
	RevenueOwnerID string

	ActivePaymentProvider string
	PaystackSecretKey     string
	FlutterwaveSecretKey  string

	EmailSenderType      string
	SendGridAPIKey       string
	SendGridSenderEmail  string
	SMSSenderType        string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioSenderNumber   string

	CrashTrackerType string
	SentryDSN        string
}

func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", 8000)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("JWT_MAXAGE", "24h")
	v.SetDefault("ACTIVE_PAYMENT_PROVIDER", "paystack")
	v.SetDefault("EMAIL_SENDER_TYPE", string(message.MessengerTypeDryRun))
	v.SetDefault("SMS_SENDER_TYPE", string(message.MessengerTypeDryRun))
	v.SetDefault("CRASH_TRACKER_TYPE", string(crashtracker.CrashTrackerTypeDryRun))

	jwtMaxAge, err := time.ParseDuration(v.GetString("JWT_MAXAGE"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing JWT_MAXAGE: %w", err)
	}

	cfg := Config{
		Environment:        v.GetString("ENVIRONMENT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Port:               v.GetInt("PORT"),
		CorsAllowedOrigins: strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ","),

		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),

		JWTSecret: v.GetString("JWT_SECRET_KEY"),
		JWTMaxAge: jwtMaxAge,

		EscrowOwnerID:  v.GetString("ESCROW_OWNER_ID"),
		RevenueOwnerID: v.GetString("REVENUE_OWNER_ID"),

		ActivePaymentProvider: v.GetString("ACTIVE_PAYMENT_PROVIDER"),
		PaystackSecretKey:     v.GetString("PAYSTACK_SECRET_KEY"),
		FlutterwaveSecretKey:  v.GetString("FLUTTERWAVE_SECRET_KEY"),

		EmailSenderType:     v.GetString("EMAIL_SENDER_TYPE"),
		SendGridAPIKey:      v.GetString("SENDGRID_API_KEY"),
		SendGridSenderEmail: v.GetString("SENDGRID_SENDER_EMAIL"),
		SMSSenderType:       v.GetString("SMS_SENDER_TYPE"),
		TwilioAccountSID:    v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioSenderNumber:  v.GetString("TWILIO_SENDER_NUMBER"),

		CrashTrackerType: v.GetString("CRASH_TRACKER_TYPE"),
		SentryDSN:        v.GetString("SENTRY_DSN"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (cfg Config) buildCrashTracker(ctx context.Context, gitCommit string) (crashtracker.CrashTrackerClient, error) {
	crashTrackerType, err := crashtracker.ParseCrashTrackerType(cfg.CrashTrackerType)
	if err != nil {
		return nil, err
	}
	return crashtracker.GetClient(ctx, crashtracker.CrashTrackerOptions{
		CrashTrackerType: crashTrackerType,
		Environment:      cfg.Environment,
		GitCommit:        gitCommit,
		SentryDSN:        cfg.SentryDSN,
	})
}

// buildMessageDispatcher registers one client per channel. Unconfigured
// channels fall back to the dry-run client so local development never needs
// provider credentials.
func (cfg Config) buildMessageDispatcher(ctx context.Context) (*message.MessageDispatcher, error) {
	dispatcher := message.NewMessageDispatcher()

	var emailClient message.MessengerClient
	var err error
	switch message.MessengerType(strings.ToUpper(cfg.EmailSenderType)) {
	case message.MessengerTypeSendGridEmail:
		emailClient, err = message.NewSendGridClient(cfg.SendGridAPIKey, cfg.SendGridSenderEmail)
	case message.MessengerTypeDryRun:
		emailClient, err = message.NewDryRunClient()
	default:
		return nil, fmt.Errorf("invalid email sender type %q", cfg.EmailSenderType)
	}
	if err != nil {
		return nil, fmt.Errorf("creating email client: %w", err)
	}
	dispatcher.RegisterClient(ctx, message.MessageChannelEmail, emailClient)

	var smsClient message.MessengerClient
	switch message.MessengerType(strings.ToUpper(cfg.SMSSenderType)) {
	case message.MessengerTypeTwilioSMS:
		smsClient, err = message.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSenderNumber)
	case message.MessengerTypeDryRun:
		smsClient, err = message.NewDryRunClient()
	default:
		return nil, fmt.Errorf("invalid sms sender type %q", cfg.SMSSenderType)
	}
	if err != nil {
		return nil, fmt.Errorf("creating sms client: %w", err)
	}
	dispatcher.RegisterClient(ctx, message.MessageChannelSMS, smsClient)

	return dispatcher, nil
}

func (cfg Config) buildPaymentProvider() (payment.Provider, error) {
	switch strings.ToLower(cfg.ActivePaymentProvider) {
	case "paystack":
		if cfg.PaystackSecretKey == "" {
			return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required when paystack is the active payment provider")
		}
		return payment.NewPaystackClient(cfg.PaystackSecretKey), nil
	case "flutterwave":
		if cfg.FlutterwaveSecretKey == "" {
			return nil, fmt.Errorf("FLUTTERWAVE_SECRET_KEY is required when flutterwave is the active payment provider")
		}
		return payment.NewFlutterwaveClient(cfg.FlutterwaveSecretKey), nil
	default:
		return nil, fmt.Errorf("invalid payment provider %q", cfg.ActivePaymentProvider)
	}
}
