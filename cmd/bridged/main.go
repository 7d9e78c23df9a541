package main

import (
	"context"
	"strings"
	"time"

	"dcbridge/internal/bridge"
	"dcbridge/internal/engine"
	_ "dcbridge/internal/engine/sim"
	"dcbridge/internal/events"
	"dcbridge/internal/firehose"
	"dcbridge/internal/handlers"
	"dcbridge/internal/metrics"
	"dcbridge/internal/websocket"
	"dcbridge/pkg/auth"
	"dcbridge/pkg/config"
	"dcbridge/pkg/logging"
	"dcbridge/pkg/monitoring"
	"dcbridge/pkg/server"
	"dcbridge/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("dcbridge")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting dcbridge (DC engine event bridge)")

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("dcbridge", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("dcbridge", version.Version, version.GitCommit)
	serviceMetrics := metrics.New(metricsCollector)

	// Open and start the engine
	engineName := config.GetEnv("ENGINE", "sim")
	configDir := config.GetEnv("ENGINE_CONFIG_DIR", "")
	eng, err := engine.Open(engineName, configDir)
	if err != nil {
		logger.WithError(err).WithField("engine", engineName).Fatal("Failed to open engine")
	}

	br := bridge.New(eng, logger, bridge.Options{
		MailboxCapacity: config.GetEnvInt("EVENT_MAILBOX_SIZE", 1024),
	})
	if err := br.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start bridge")
	}
	defer br.Close()

	// Count engine activity
	for _, kind := range events.Kinds() {
		if _, err := br.OnAsync(kind, func(ev events.Event) {
			serviceMetrics.EventsByKind.WithLabelValues(string(ev.Kind)).Inc()
		}); err != nil {
			logger.WithError(err).Fatal("Failed to register metrics handler")
		}
	}
	trackHubGauge(br, serviceMetrics, logger)

	// WebSocket fan-out
	jwtSecret := []byte(config.RequireEnv("JWT_SECRET"))
	hub := websocket.NewHub(logger, websocket.Config{JWTSecret: jwtSecret}, serviceMetrics)
	go hub.Run()
	defer hub.Stop()

	fanout := br.Events()
	defer fanout.Close()
	go func() {
		ctx := context.Background()
		for {
			ev, err := fanout.Next(ctx)
			if err != nil {
				return
			}
			hub.BroadcastEvent(ev)
		}
	}()

	// Periodic status snapshots on the status channel
	statusInterval := time.Duration(config.GetEnvInt("STATUS_INTERVAL_SECONDS", 10)) * time.Second
	stopStatus := make(chan struct{})
	defer close(stopStatus)
	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hub.BroadcastStatus(br.Status())
			case <-stopStatus:
				return
			}
		}
	}()

	// Optional Kafka firehose
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if brokersEnv := config.GetEnv("KAFKA_BROKERS", ""); brokersEnv != "" {
		publisher, err := firehose.New(firehose.Config{
			Brokers:  strings.Split(brokersEnv, ","),
			Topic:    config.GetEnv("KAFKA_TOPIC", "dc_events"),
			ClientID: config.GetEnv("KAFKA_CLIENT_ID", "dcbridge"),
		}, logger, serviceMetrics)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize firehose")
		}
		defer publisher.Close()

		firehoseStream := br.Events()
		defer firehoseStream.Close()
		go publisher.Run(ctx, firehoseStream)

		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(publisher.Client()))
	}

	healthChecker.AddCheck("engine", monitoring.DependencyHealthCheck("engine", func(context.Context) error {
		_ = br.Engine().ListHubs()
		return nil
	}))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"ENGINE": engineName,
	}))

	// HTTP surface
	bridgeHandlers := handlers.NewBridgeHandlers(br, hub, logger, handlers.Config{
		JWTSecret: jwtSecret,
		TokenTTL:  time.Duration(config.GetEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		Credentials: handlers.Credentials{
			Username:     config.GetEnv("BRIDGE_USER", "operator"),
			PasswordHash: config.RequireEnv("BRIDGE_PASSWORD_HASH"),
		},
	})

	router := server.SetupServiceRouter(logger, "dcbridge", healthChecker, metricsCollector)

	router.GET("/ws", bridgeHandlers.HandleWebSocket)
	router.POST("/auth/login", bridgeHandlers.HandleLogin)

	api := router.Group("/api/v1")
	api.Use(auth.JWTAuthMiddleware(jwtSecret))
	api.GET("/status", bridgeHandlers.HandleStatus)
	api.GET("/hubs", bridgeHandlers.HandleListHubs)
	api.POST("/hubs/connect", bridgeHandlers.HandleConnect)
	api.POST("/hubs/disconnect", bridgeHandlers.HandleDisconnect)
	api.POST("/messages", bridgeHandlers.HandleSendMessage)
	api.POST("/search", bridgeHandlers.HandleSearch)
	api.GET("/queue", bridgeHandlers.HandleListQueue)
	api.POST("/downloads", bridgeHandlers.HandleDownload)
	api.DELETE("/downloads", bridgeHandlers.HandleRemoveDownload)

	router.NoRoute(bridgeHandlers.HandleNotFound)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("dcbridge", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

// trackHubGauge keeps the connected-hubs gauge aligned with engine state.
func trackHubGauge(br *bridge.Bridge, m *metrics.Metrics, logger logging.Logger) {
	update := func(events.Event) {
		m.HubsConnected.Set(float64(len(br.Engine().ListHubs())))
	}
	for _, kind := range []events.Kind{events.KindHubConnected, events.KindHubDisconnected} {
		if _, err := br.OnAsync(kind, update); err != nil {
			logger.WithError(err).Fatal("Failed to register hub gauge handler")
		}
	}
}
