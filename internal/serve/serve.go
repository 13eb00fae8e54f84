// Package serve wires the HTTP API: dependencies, router, and server
// lifecycle with graceful shutdown.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/crashtracker"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/message"
	"github.com/sabimarket/sabimarket-backend/internal/monitor"
	"github.com/sabimarket/sabimarket-backend/internal/payment"
	"github.com/sabimarket/sabimarket-backend/internal/serve/auth"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httphandler"
	"github.com/sabimarket/sabimarket-backend/internal/serve/middleware"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

const (
	defaultRateLimit       = 100
	defaultRateLimitWindow = 1 * time.Minute
	shutdownGracePeriod    = 10 * time.Second
)

type ServeOptions struct {
	Environment        string
	Version            string
	GitCommit          string
	Port               int
	CorsAllowedOrigins []string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTMaxAge time.Duration

	// Platform accounts holding escrowed funds and collected fees.
	EscrowOwnerID  string
	RevenueOwnerID string

	PaymentProvider    payment.Provider
	MessageDispatcher  message.MessageDispatcherInterface
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient

	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	cache            *cache.Cache
	authenticator    *auth.TokenAuthenticator

	walletService   *services.WalletService
	jobService      *services.JobService
	orderService    *services.OrderService
	disputeService  *services.DisputeService
	propertyService *services.PropertyService
	chatService     *services.ChatService
}

// SetupDependencies opens the shared connections and builds the service
// graph. The cache is optional: with no Redis URL every lookup is a miss.
func (opts *ServeOptions) SetupDependencies(ctx context.Context) error {
	dbConnectionPool, err := db.OpenDBConnectionPool(opts.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to the database: %w", err)
	}
	opts.dbConnectionPool = dbConnectionPool

	opts.models, err = data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("creating models: %w", err)
	}

	if opts.RedisURL != "" {
		opts.cache, err = cache.Open(ctx, opts.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	} else {
		log.WithContext(ctx).Warn("no Redis URL configured, caching is disabled")
	}

	opts.authenticator, err = auth.NewTokenAuthenticator(opts.JWTSecret, opts.JWTMaxAge)
	if err != nil {
		return fmt.Errorf("creating token authenticator: %w", err)
	}

	ledgerService := ledger.NewService(opts.models)
	engine := escrow.NewEngine(opts.models, ledgerService, opts.EscrowOwnerID, opts.RevenueOwnerID)

	opts.walletService = services.NewWalletService(opts.models, ledgerService, opts.PaymentProvider, opts.MessageDispatcher)
	opts.jobService = services.NewJobService(opts.models, engine, opts.cache, opts.MessageDispatcher)
	opts.orderService = services.NewOrderService(opts.models, engine, opts.cache, opts.MessageDispatcher)
	opts.disputeService = services.NewDisputeService(opts.models, engine, opts.cache, opts.MessageDispatcher)
	opts.propertyService = services.NewPropertyService(opts.models, opts.cache, opts.MessageDispatcher)
	opts.chatService = services.NewChatService(opts.models, opts.cache, opts.jobService, opts.MessageDispatcher)
	return nil
}

// Serve runs the API server until the context is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	if err := opts.SetupDependencies(ctx); err != nil {
		return fmt.Errorf("setting up dependencies: %w", err)
	}
	defer opts.dbConnectionPool.Close()
	defer opts.cache.Close()
	defer opts.CrashTrackerClient.FlushEvents(2 * time.Second)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handleHTTP(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithContext(ctx).Infof("starting API server on :%d", opts.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("running API server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		log.Info("shutting down API server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return nil
	}
}

func handleHTTP(opts ServeOptions) http.Handler {
	mux := chi.NewRouter()

	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.CorsMiddleware(opts.CorsAllowedOrigins))
	mux.Use(middleware.RecoverHandler(opts.CrashTrackerClient))
	mux.Use(middleware.MetricsRequestHandler(opts.MonitorService))
	mux.Use(middleware.RateLimitMiddleware(defaultRateLimit, defaultRateLimitWindow))

	healthHandler := httphandler.HealthHandler{
		Version:          opts.Version,
		GitCommit:        opts.GitCommit,
		DBConnectionPool: opts.dbConnectionPool,
	}
	mux.Get("/health", healthHandler.Get)
	mux.Method(http.MethodGet, "/metrics", opts.MonitorService.GetMetricHttpHandler())

	walletHandler := httphandler.WalletHandler{WalletService: opts.walletService}
	jobHandler := httphandler.JobHandler{JobService: opts.jobService}
	disputeHandler := httphandler.DisputeHandler{DisputeService: opts.disputeService}
	orderHandler := httphandler.OrderHandler{OrderService: opts.orderService}
	propertyHandler := httphandler.PropertyHandler{PropertyService: opts.propertyService}
	chatHandler := httphandler.ChatHandler{ChatService: opts.chatService}

	mux.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthenticateMiddleware(opts.authenticator))

		r.Route("/wallet", func(r chi.Router) {
			r.Post("/deposit", walletHandler.InitializeDeposit)
			r.Post("/deposit/verify", walletHandler.VerifyDeposit)
			r.Post("/withdraw", walletHandler.Withdraw)
			r.Post("/withdraw/otp", walletHandler.RequestWithdrawalOTP)
			r.Post("/transfer", walletHandler.Transfer)
			r.Put("/pin", walletHandler.SetPin)
			r.Get("/balance", walletHandler.Balance)
			r.Get("/history", walletHandler.History)
		})

		r.Route("/labour", func(r chi.Router) {
			r.With(middleware.AnyRoleMiddleware(data.EmployerUserRole)).
				Post("/jobs", jobHandler.Create)
			r.Get("/jobs/{id}", jobHandler.Get)
			r.With(middleware.AnyRoleMiddleware(data.EmployerUserRole)).
				Put("/jobs/{id}/assign", jobHandler.Assign)
			r.With(middleware.AnyRoleMiddleware(data.WorkerUserRole)).
				Post("/jobs/{id}/progress", jobHandler.SubmitProgress)
			r.With(middleware.AnyRoleMiddleware(data.EmployerUserRole)).
				Put("/jobs/{id}/complete", jobHandler.Complete)
			r.Post("/jobs/{id}/dispute", jobHandler.OpenDispute)
			r.With(middleware.AnyRoleMiddleware(data.EmployerUserRole)).
				Delete("/jobs/{id}", jobHandler.Cancel)
			r.With(middleware.AnyRoleMiddleware(data.ModeratorUserRole)).
				Put("/disputes/{id}/resolve", disputeHandler.Resolve)
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Post("/orders", orderHandler.Create)
			r.Put("/orders/{id}/pay", orderHandler.Pay)
			r.With(middleware.AnyRoleMiddleware(data.VendorUserRole)).
				Put("/orders/{id}/ship", orderHandler.MarkShipped)
			r.With(middleware.AnyRoleMiddleware(data.VendorUserRole)).
				Put("/orders/{id}/deliver", orderHandler.MarkDelivered)
			r.Post("/orders/confirm", orderHandler.ConfirmDelivery)
			r.Delete("/orders/{id}", orderHandler.Cancel)
			r.Post("/orders/{id}/dispute", orderHandler.OpenDispute)
			r.With(middleware.AnyRoleMiddleware(data.ModeratorUserRole)).
				Post("/disputes/settle/{id}", disputeHandler.Resolve)
		})

		r.Route("/property", func(r chi.Router) {
			r.With(middleware.AnyRoleMiddleware(data.LandlordUserRole)).
				Post("/create", propertyHandler.Create)
			r.Get("/{id}", propertyHandler.Get)
			r.Get("/{id}/verifications", propertyHandler.VerificationHistory)
			r.With(middleware.AnyRoleMiddleware(data.AgentUserRole)).
				Post("/agent-verify/{id}", propertyHandler.AgentVerify)
			r.With(middleware.AnyRoleMiddleware(data.LawyerUserRole)).
				Post("/lawyer-verify/{id}", propertyHandler.LawyerVerify)
			r.With(middleware.AnyRoleMiddleware(data.ModeratorUserRole)).
				Put("/{id}/verifiers", propertyHandler.AssignVerifiers)
			r.With(middleware.AnyRoleMiddleware(data.AgentUserRole)).
				Get("/queue/agent", propertyHandler.ListAwaitingAgent)
			r.With(middleware.AnyRoleMiddleware(data.LawyerUserRole)).
				Get("/queue/lawyer", propertyHandler.ListAwaitingLawyer)
			r.Put("/{id}/state", propertyHandler.SetListingState)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", chatHandler.Start)
			r.Get("/", chatHandler.ListChats)
			r.Post("/{id}/messages", chatHandler.SendMessage)
			r.Get("/{id}/messages", chatHandler.ListMessages)
			r.Put("/{id}/read", chatHandler.MarkRead)
			r.Post("/{id}/proposals", chatHandler.SendProposal)
			r.Get("/{id}/proposals", chatHandler.ListProposals)
			r.Put("/proposals/{id}", chatHandler.RespondProposal)
		})
	})

	return mux
}
