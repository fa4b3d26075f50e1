package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/docsift/docsift/pkg/api/v1"
	"github.com/docsift/docsift/pkg/common"
	"github.com/docsift/docsift/pkg/oauth"
	"github.com/docsift/docsift/pkg/repository"
	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/sources/providers"
	"github.com/docsift/docsift/pkg/types"
)

// Gateway is the long-running search daemon: it owns the credential store,
// the per-account token manager, the provider connectors, and the HTTP API
// that fronts them.
type Gateway struct {
	Config     types.AppConfig
	httpServer *http.Server
	echo       *echo.Echo
	listenAddr string
	ctx        context.Context
	cancelFunc context.CancelFunc

	baseRouteGroup *echo.Group

	credentialRepo repository.CredentialRepository
	oauthRegistry  *oauth.Registry
	oauthStore     *oauth.Store
	tokenManager   *oauth.Manager

	sourceRegistry *sources.Registry
	rateLimiter    *sources.RateLimiter
	aggregator     *sources.Aggregator
	queryCache     *sources.QueryCache
}

func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	return NewGatewayWithConfig(configManager.GetConfig())
}

// NewGatewayWithConfig wires a gateway from an already-loaded configuration.
// Use this when embedding the gateway in another process (e.g., tests).
func NewGatewayWithConfig(config types.AppConfig) (*Gateway, error) {
	// Setup logging
	log.Logger = log.Logger.Level(zerolog.InfoLevel)
	if config.DebugMode {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
	if config.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	credentialRepo, err := repository.NewCredentialRepository(config.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	oauthRegistry := oauth.NewRegistry()
	oauthRegistry.Register(oauth.NewGoogleClient())
	oauthRegistry.Register(oauth.NewMicrosoftClient())

	tokenManager := oauth.NewManager(config, credentialRepo, oauthRegistry)

	rateLimiter := sources.NewRateLimiter(sources.RateLimitConfig{
		RequestsPerSecond: config.Search.RatePerSecond,
		BurstSize:         config.Search.RateBurst,
	})

	// Register connectors unconditionally; the aggregator consults the
	// enabled flags per request, so toggling a provider needs no rewiring.
	sourceRegistry := sources.NewRegistry()
	sourceRegistry.Register(providers.NewLocalConnector(config.Providers.Local, config.Search))
	sourceRegistry.Register(providers.NewGoogleConnector(config, tokenManager, rateLimiter))
	sourceRegistry.Register(providers.NewMicrosoftConnector(config, tokenManager, rateLimiter))

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:         config,
		ctx:            ctx,
		cancelFunc:     cancel,
		credentialRepo: credentialRepo,
		oauthRegistry:  oauthRegistry,
		oauthStore:     oauth.NewStore(0), // Default TTL
		tokenManager:   tokenManager,
		sourceRegistry: sourceRegistry,
		rateLimiter:    rateLimiter,
		aggregator:     sources.NewAggregator(config, sourceRegistry),
		queryCache:     sources.NewQueryCache(config.Search.CacheTTL, 0),
	}

	return gateway, nil
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	// Tag every request so slow or failing searches can be correlated
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: common.GenerateRequestID,
	}))

	// Configure logging middleware
	if g.Config.PrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: g.Config.Gateway.HTTP.CORS.AllowedOrigins,
		AllowHeaders: g.Config.Gateway.HTTP.CORS.AllowedHeaders,
		AllowMethods: g.Config.Gateway.HTTP.CORS.AllowedMethods,
	}))

	e.Use(middleware.Recover())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)
	g.registerRoutes()

	return nil
}

func (g *Gateway) registerRoutes() {
	authMW := apiv1.NewAuthMiddleware(g.Config.Gateway.AuthToken)

	// Health stays open so process supervisors can probe without a token
	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.credentialRepo)

	searchGroup := g.baseRouteGroup.Group("/search")
	searchGroup.Use(authMW)
	apiv1.NewSearchGroup(searchGroup, g.aggregator, g.queryCache)

	accountsGroup := g.baseRouteGroup.Group("/accounts")
	accountsGroup.Use(authMW)
	apiv1.NewAccountsGroup(accountsGroup, g.Config, g.tokenManager, g.queryCache)

	// Session creation wants the token, the provider redirect cannot carry it
	apiv1.NewOAuthGroup(g.baseRouteGroup.Group("/oauth"), g.Config, g.oauthStore, g.oauthRegistry, g.tokenManager, g.queryCache, authMW)

	log.Info().
		Strs("providers", providerNames(g.sourceRegistry.List())).
		Msg("search API registered")
}

// StartAsync starts the gateway HTTP server without blocking.
// Use this when embedding the gateway in another process (e.g., CLI).
func (g *Gateway) StartAsync() error {
	err := g.initHTTP()
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	addr := g.httpServer.Addr
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	g.listenAddr = lis.Addr().String()

	go func() {
		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Msg("gateway http server running")

	return nil
}

// Addr returns the bound HTTP address. Before StartAsync it reports the
// configured address; after, the actual one, which differs when port 0
// asked the OS to pick.
func (g *Gateway) Addr() string {
	if g.listenAddr != "" {
		return g.listenAddr
	}
	return fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port)
}

// Start is the gateway entry point: it serves until interrupted.
func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), g.Config.Gateway.ShutdownTimeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.httpServer.Shutdown(ctx)
	})

	eg.Go(func() error {
		g.oauthStore.Stop()
		return nil
	})

	eg.Go(func() error {
		return g.credentialRepo.Close()
	})

	g.cancelFunc()

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown gateway gracefully")
	}

	log.Info().Msg("gateway stopped")
}

// SourceRegistry returns the connector registry, mainly for tests.
func (g *Gateway) SourceRegistry() *sources.Registry {
	return g.sourceRegistry
}

func providerNames(providers []types.Provider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = string(p)
	}
	return names
}
