package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-gateway/auth"
	"github.com/jrsteele09/go-auth-gateway/clients/redisrepo"
	"github.com/jrsteele09/go-auth-gateway/events"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/internal/logging"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/jrsteele09/go-auth-gateway/internal/redisclient"
	"github.com/jrsteele09/go-auth-gateway/server"
	"github.com/jrsteele09/go-auth-gateway/server/authflowrepo"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	"github.com/jrsteele09/go-auth-gateway/sessions/redisstore"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/jrsteele09/go-auth-gateway/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	c := config.New()
	logging.Init(c.GetEnv(), c.GetLogLevel())

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if err := config.Validate(c); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redisclient.New(ctx, redisclient.Config{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	m := metrics.New()
	handler, invalidator, err := wire(ctx, c, redisClient, m)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if c.GetEventsEnabled() {
		consumer, err := events.NewConsumer(redisClient, invalidator, events.ConsumerConfig{
			Streams:  c.GetEventsStreams(),
			Group:    c.GetEventsConsumerGroup(),
			Consumer: c.GetEventsConsumerName(),
			Workers:  c.GetEventsWorkers(),
			Block:    c.GetEventsBlock(),
		}, events.WithConsumerMetrics(m))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Err(err).Msg("user event consumer stopped")
			}
		}()
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		returnError = err
	case <-waitForStopSignal():
		returnError = shutdown(srv)
	}
	cancel()
	wg.Wait()
	return returnError
}

// wire builds the stores, the IdP clients and the HTTP server
func wire(ctx context.Context, c config.Config, redisClient redis.UniversalClient, m *metrics.Metrics) (http.Handler, *events.Invalidator, error) {
	prefix := c.GetRedisKeyPrefix()
	httpClient := &http.Client{Timeout: c.GetHTTPClientTimeout()}

	directory, err := sessions.NewDirectory(redisstore.New(redisClient, prefix), sessions.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	clientRepo := redisrepo.New(redisClient, prefix, c.GetSessionMaxInactive())
	authFlows := authflowrepo.NewRedisRepo(redisClient, prefix, c.GetAuthFlowTimeout())

	broker, err := token.NewBroker(token.BrokerConfig{
		TokenEndpoint:      c.GetTokenEndpoint(),
		AdminUsersEndpoint: c.GetAdminUsersEndpoint(),
		ClientID:           c.GetClientID(),
		ClientSecret:       c.GetClientSecret(),
		ExchangeAudience:   c.GetExchangeAudience(),
	}, token.WithHTTPClient(httpClient), token.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}

	identity, err := users.NewIdentityClient(c.GetInternalGatewayURI(), users.WithHTTPClient(httpClient), users.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	userService, err := users.NewService(identity, directory)
	if err != nil {
		return nil, nil, err
	}

	orchestrator, err := auth.NewOrchestrator(c.GetRegistrationID(), broker, identity, clientRepo,
		auth.WithTimeout(c.GetOrchestrationTimeout()),
		auth.WithBootstrapMode(c.GetBootstrapMode()),
		auth.WithTokenExchange(c.GetExchangeAudience() != ""),
		auth.WithConcurrentCorrelation(c.GetConcurrentCorrelation()),
		auth.WithMetrics(m),
	)
	if err != nil {
		return nil, nil, err
	}

	invalidator, err := events.NewInvalidator(directory, events.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}

	oidcConfig, err := server.NewOidcConfig(ctx, c, c.GetBaseURL()+server.RouteOAuth2Callback)
	if err != nil {
		return nil, nil, err
	}

	srv, err := server.New(c, server.Repos{
		Directory: directory,
		Clients:   clientRepo,
		AuthFlows: authFlows,
		PostLogin: orchestrator,
		Users:     userService,
		Oidc:      oidcConfig,
		Metrics:   m,
		Health: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, invalidator, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
