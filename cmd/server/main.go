package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"water-monitor/internal/aggregator"
	"water-monitor/internal/alerting"
	"water-monitor/internal/api"
	"water-monitor/internal/clock"
	"water-monitor/internal/database"
	"water-monitor/internal/logger"
	"water-monitor/internal/models"
	"water-monitor/internal/mqtt"
	"water-monitor/internal/notifier"
	"water-monitor/internal/services"
	"water-monitor/internal/supervisor"
	"water-monitor/internal/websocket"
	"water-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	log.Info().Msg("starting water level monitor")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}

	// === Alert audit log (optional) ===
	var (
		recorder services.AlertRecorder
		alertLog api.AlertLog
	)
	if cfg.ClickHouseAddr != "" {
		db, err := database.NewClickHouseDB(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			log.Error().Err(err).Msg("alert audit log unavailable, continuing without it")
		} else {
			defer db.Close()
			recorder = db
			alertLog = db
		}
	}

	// === Classification and alert engine ===
	thresholds := models.Thresholds{Warning: cfg.WarningThreshold, Hazard: cfg.HazardThreshold}
	if err := thresholds.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid thresholds")
	}
	if thresholds.Inverted() {
		log.Warn().Msg("WARNING_THRESHOLD is not below HAZARD_THRESHOLD; the warning band is unreachable")
	}

	strategy, err := alerting.ParseStrategy(cfg.AlertStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ALERT_STRATEGY")
	}
	engine := alerting.NewEngine(alerting.Config{
		Strategy:        strategy,
		Cooldown:        cfg.AlertCooldown,
		Enabled:         cfg.AlertsEnabled,
		ResetOnRecovery: cfg.AlertResetOnRecovery,
	}, clk)

	// === Notifiers ===
	telegram := notifier.NewTelegram(notifier.TelegramConfig{
		Token:   cfg.TelegramBotToken,
		ChatID:  cfg.TelegramChatID,
		APIBase: cfg.TelegramAPIBase,
		Timeout: cfg.AlertSendTimeout,
	})

	var (
		notifiers   []notifier.Notifier
		alertBroker api.BrokerStatus
	)
	if cfg.HasNotifier(config.NotifierTelegram) {
		notifiers = append(notifiers, telegram)
	}
	if cfg.HasNotifier(config.NotifierRelay) {
		notifiers = append(notifiers, notifier.NewRelay(cfg.RelayURL, cfg.AlertSendTimeout))
	}
	if cfg.HasNotifier(config.NotifierMQTT) {
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientID,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			log.Error().Err(err).Msg("MQTT alert publisher unavailable")
		} else {
			defer mqttClient.Close()
			alertBroker = mqttClient
			notifiers = append(notifiers, mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
				AlertTopic: cfg.MQTTTopicAlert,
				QoS:        byte(cfg.MQTTQoS),
			}))
		}
	}
	fanout := notifier.NewMulti(notifiers...)
	if fanout.Len() == 0 {
		log.Warn().Msg("no notifiers available; alerts will be logged as failed")
	}

	alertService := services.NewAlertService(engine, fanout, recorder, clk, services.AlertServiceConfig{
		SendTimeout: cfg.AlertSendTimeout,
	})

	// === Dashboard hub ===
	var session *services.Session
	hub := websocket.NewHub(func() interface{} { return session.Snapshot() })
	alertService.OnOutcome = func(o services.AlertOutcome) { hub.ShowAlert(o) }

	// === Sensor supervisor ===
	var factory supervisor.TransportFactory
	switch cfg.Transport {
	case config.TransportMQTT:
		factory = mqtt.NewTransportFactory(mqtt.TransportConfig{
			ClientID:       cfg.MQTTClientID + "-sensor",
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			Topic:          cfg.MQTTTopicLevel,
			QoS:            byte(cfg.MQTTQoS),
			ConnectTimeout: cfg.ConnectTimeout,
		})
	default:
		wsConfig := websocket.DefaultTransportConfig()
		wsConfig.Path = cfg.SensorPath
		factory = websocket.NewTransportFactory(wsConfig)
	}

	sup := supervisor.New(supervisor.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectDelay: cfg.ReconnectDelay,
		BufferSize:     cfg.ReadingBuffer,
	}, factory, clk)
	sup.OnStatus = hub.ShowStatus

	// === Monitor service ===
	monitor := services.NewMonitorService(
		aggregator.NewHistory(cfg.HistorySize),
		engine,
		alertService,
		hub,
		services.MonitorServiceConfig{Thresholds: thresholds, ChannelSize: cfg.ReadingBuffer},
	)

	// Connect monitor input to supervisor output
	monitor.ReadingChan = sup.Readings

	session = services.NewSession(sup, monitor, engine)

	go hub.Run(ctx)
	go monitor.Start(ctx)

	// === HTTP API ===
	var relay *api.RelayHandler
	if cfg.RelayEnabled {
		relay = api.NewRelayHandler(telegram, cfg.RelayCooldown, clk)
	}
	handler := api.NewHandler(session, relay, alertLog, clk)
	handler.AlertBroker = alertBroker
	router := api.NewRouter(handler, hub.ServeWS)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if cfg.SensorTarget != "" {
		if err := session.Start(cfg.SensorTarget); err != nil {
			log.Error().Err(err).Str("target", cfg.SensorTarget).Msg("could not start sensor session")
		}
	}

	// === Log startup info ===
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("transport", cfg.Transport).
		Str("strategy", strategy.String()).
		Dur("cooldown", cfg.AlertCooldown).
		Float64("warning", thresholds.Warning).
		Float64("hazard", thresholds.Hazard).
		Strs("notifiers", cfg.Notifiers).
		Bool("telegram_configured", telegram.Configured()).
		Bool("relay", cfg.RelayEnabled).
		Bool("audit_log", recorder != nil).
		Msg("water level monitor is running")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Info().Msg("shutdown signal received, stopping services")
	session.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}

	cancel()
	alertService.Wait()

	log.Info().Msg("shutdown complete")
}
