// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rig-service/internal/config"
	"rig-service/internal/discovery"
	"rig-service/internal/handler"
	"rig-service/internal/protocol"
	"rig-service/internal/rig"
	"rig-service/internal/routes"
	"rig-service/internal/service"
	"rig-service/internal/storage"
	"rig-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *storage.DB

	// Rig runtime
	controller *rig.Controller
	scanner    *discovery.Scanner

	// Services
	rigService     *service.RigService
	sessionService *service.SessionService

	// Repositories
	sessionRepo storage.SessionRepository

	// Monitoring surface
	wsHandler *handler.WebSocketHandler
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "rig-service")
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeRig(); err != nil {
		return nil, fmt.Errorf("failed to initialize rig: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDatabase sets up the session store and runs migrations. The
// store is optional: without it the service still drives the rig, it just
// records nothing.
func (app *Application) initializeDatabase() error {
	db, err := storage.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		app.logger.Warn("Session store unavailable, running without persistence",
			zap.Error(err),
		)
		return nil
	}

	app.database = db

	migrator := storage.NewMigrator(db, app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.sessionRepo = storage.NewSessionRepository(db, app.logger)

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRig builds the transport pair, connects the state machine and
// wires the pollers into the session service and monitoring surface.
func (app *Application) initializeRig() error {
	app.scanner = discovery.NewScanner(&app.config.Serial, &app.config.Device, app.logger)

	// The websocket handler and session service exist before the
	// controller because they are its sinks
	app.wsHandler = handler.NewWebSocketHandler(app.logger)
	app.sessionService = service.NewSessionService(app.sessionRepo, app.wsHandler, app.logger)

	pair, err := app.buildTransportPair()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Device.HandshakeTimeout+5*time.Second)
	defer cancel()

	controller, err := rig.Connect(ctx, pair, rig.Options{
		ConfirmTimeout:   app.config.Device.ConfirmTimeout,
		RelayPollPeriod:  app.config.Device.RelayPollPeriod,
		AnalogPollPeriod: app.config.Device.AnalogPollPeriod,
		ModuleSink:       app.sessionService,
		SampleSink:       app.sessionService,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect state machine: %w", err)
	}

	app.controller = controller
	app.sessionService.BindController(controller)
	app.rigService = service.NewRigService(controller, app.logger)

	app.logger.Info("Rig initialized successfully")
	return nil
}

// buildTransportPair picks the transports: configured port, auto-detected
// port, or the emulator
func (app *Application) buildTransportPair() (*protocol.TransportPair, error) {
	if app.config.Device.Emulator {
		return app.emulatedPair()
	}

	if app.config.Serial.Port != "" {
		return protocol.NewSerialPair(&app.config.Serial, app.logger)
	}

	if app.config.Device.AutoDetect {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		rigs, err := app.scanner.Scan(ctx)
		cancel()

		if err != nil {
			app.logger.Warn("Port scan failed", zap.Error(err))
		}
		if len(rigs) > 0 {
			app.logger.Info("Auto-detected state machine",
				zap.String("port", rigs[0].Port),
				zap.String("machine_type", rigs[0].MachineType.String()),
				zap.Int("firmware", rigs[0].FirmwareVersion),
			)
			app.config.Serial.Port = rigs[0].Port
			return protocol.NewSerialPair(&app.config.Serial, app.logger)
		}

		app.logger.Warn("No state machine found on any serial port, starting emulator")
		return app.emulatedPair()
	}

	return nil, fmt.Errorf("no serial port configured and auto-detect is disabled")
}

// emulatedPair builds the emulated transports from the configured profile
func (app *Application) emulatedPair() (*protocol.TransportPair, error) {
	machineType, err := protocol.MachineTypeFromName(app.config.Device.EmulatorMachineType)
	if err != nil {
		return nil, fmt.Errorf("invalid emulator machine type: %w", err)
	}
	return protocol.NewEmulatedPair(machineType, app.config.Device.EmulatorFirmware, app.logger), nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	healthHandler := handler.NewHealthHandler(app.database, app.controller, app.config, app.logger)

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.rigService,
		app.sessionService,
		app.scanner,
		app.wsHandler,
		healthHandler,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	go app.startStatusBroadcasting()

	app.logger.Info("Background services started")
}

// startStatusBroadcasting pushes a runtime status snapshot to the
// monitoring clients on a fixed period
func (app *Application) startStatusBroadcasting() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		app.wsHandler.BroadcastStatus(app.controller.Status().Snapshot())
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "rig-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Close any running session before releasing the device
	if app.sessionService.CurrentSession() != nil {
		if _, err := app.sessionService.StopSession(ctx); err != nil {
			app.logger.Error("Session stop error during shutdown", zap.Error(err))
		}
	}

	if app.controller != nil {
		if err := app.controller.Close(ctx); err != nil {
			app.logger.Error("Rig close error", zap.Error(err))
		}
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
