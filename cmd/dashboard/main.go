package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/urfave/cli/v2"

	"github.com/open-teleop/dashboard/domain/diagnostic"
	"github.com/open-teleop/dashboard/domain/navigation"
	"github.com/open-teleop/dashboard/domain/teleop"
	"github.com/open-teleop/dashboard/pkg/activity"
	"github.com/open-teleop/dashboard/pkg/api"
	"github.com/open-teleop/dashboard/pkg/config"
	"github.com/open-teleop/dashboard/pkg/hub"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/processing"
	"github.com/open-teleop/dashboard/pkg/rosbridge"
	"github.com/open-teleop/dashboard/pkg/rosparser"
	"github.com/open-teleop/dashboard/pkg/zeromq"
	"github.com/open-teleop/dashboard/services"
)

func main() {
	app := &cli.App{
		Name:  "dashboard",
		Usage: "robot teleoperation dashboard server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "config",
				Usage:   "directory holding " + config.BootstrapFileName,
				EnvVars: []string{"DASHBOARD_CONFIG_DIR"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP port, overrides server.http_port",
				EnvVars: []string{"PORT"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("dashboard: %v", err)
	}
}

func run(c *cli.Context) error {
	bootstrap, err := config.LoadBootstrapConfig(c.String("config-dir"))
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		bootstrap.Server.HTTPPort = c.Int("port")
	}

	appLogger, err := customlog.NewLogrusLogger(bootstrap.Logging.Level, bootstrap.Logging.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	rosparser.SetLogger(appLogger)

	configService, err := services.NewDashboardConfigService(bootstrap.DashboardConfigPath(), appLogger)
	if err != nil {
		return fmt.Errorf("failed to load dashboard config: %w", err)
	}
	cfg := configService.GetCurrentConfig()

	activityLog, err := activity.Open(bootstrap.ActivityDatabasePath())
	if err != nil {
		return err
	}
	defer activityLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Browser fan-out
	events := hub.New("events", appLogger)
	go events.Run(ctx)
	activityLog.OnRecord(func(e activity.Entry) {
		if err := events.BroadcastEvent("activity", e); err != nil {
			appLogger.Warnf("Failed to broadcast activity: %v", err)
		}
	})

	// Inbound message processing
	registry := processing.NewTopicRegistry(appLogger)
	registry.LoadFromConfig(cfg)
	director := processing.NewMessageDirector(appLogger, registry, &processing.DirectorOptions{
		DefaultQueueSize: bootstrap.Processing.QueueSize,
	})
	director.Initialize(
		bootstrap.Processing.HighPriorityWorkers,
		bootstrap.Processing.StandardPriorityWorkers,
		bootstrap.Processing.LowPriorityWorkers,
	)
	processor := processing.NewRosMessageProcessor(appLogger, registry)
	director.SetProcessor(processor.CreateProcessorFunc())
	director.SetResultHandler(processing.NewLoggingResultHandler(appLogger).CreateHandlerFunc())

	// Rosbridge session
	bridge := rosbridge.NewClient(bootstrap.Rosbridge.URL, appLogger, rosbridge.Options{
		ReconnectInterval: time.Duration(bootstrap.Rosbridge.ReconnectIntervalMs) * time.Millisecond,
	})
	bridge.SetMessageHandler(func(topic string, msg json.RawMessage) {
		director.EnqueueRaw(topic, msg)
	})
	connection := &bridgeActivity{log: activityLog, logger: appLogger}
	bridge.OnConnect(func() {
		connection.onConnect()
		_ = events.BroadcastEvent("bridge", fiber.Map{"connected": true})
	})
	bridge.OnDisconnect(func(err error) {
		connection.onDisconnect(err)
		_ = events.BroadcastEvent("bridge", fiber.Map{"connected": false})
	})
	if err := bridge.SyncTopics(bridgeTopics(cfg)); err != nil {
		return fmt.Errorf("failed to register bridge topics: %w", err)
	}

	// Domain services
	navigationService := navigation.NewNavigationService(navigation.Options{
		ParentFrame:    cfg.Frames.Parent,
		ChildFrame:     cfg.Frames.Child,
		CanvasWidth:    bootstrap.Canvas.Width,
		CanvasHeight:   bootstrap.Canvas.Height,
		RenderDebounce: time.Duration(bootstrap.Render.DebounceMs) * time.Millisecond,
	}, appLogger)
	navigationService.SetBroadcaster(events)

	teleopService := teleop.NewTeleopService(teleop.SettingsFromConfig(cfg), bridge, appLogger)
	teleopService.SetActivity(activityLog)
	teleopService.SetBroadcaster(events)

	handlers := map[string]processing.TopicHandler{
		config.TopicMap:         navigationService.HandleMap,
		config.TopicTF:          navigationService.HandleTF,
		config.TopicOdom:        navigationService.HandleOdom,
		config.TopicCurrentTask: teleopService.HandleCurrentTask,
	}
	if missing := processor.BindTopics(cfg, handlers); len(missing) > 0 {
		appLogger.Warnf("No topic mapping for %v; those handlers stay idle", missing)
	}

	diagnosticService := diagnostic.NewDiagnosticService(diagnostic.Sources{
		Bridge:     bridge,
		Topics:     registry,
		Pools:      director,
		Activity:   activityLog,
		Navigation: func() interface{} { return navigationService.Status() },
		Teleop:     func() interface{} { return teleopService.State() },
		Clients:    events.ClientCount,
		RobotID:    func() string { return configService.GetCurrentConfig().RobotID },
	}, appLogger)

	events.SetWelcome(func() []hub.Message {
		var msgs []hub.Message
		if png, ok := navigationService.MapPNG(); ok {
			msgs = append(msgs, hub.NewBinaryMessage(png))
		}
		if pose, ok := navigationService.Pose(); ok {
			if m, err := hub.NewEventMessage("pose", pose); err == nil {
				msgs = append(msgs, m)
			}
		}
		if m, err := hub.NewEventMessage("teleop", teleopService.State()); err == nil {
			msgs = append(msgs, m)
		}
		return msgs
	})

	// Telemetry bus
	if bootstrap.ZeroMQ.PublishBindAddress != "" {
		zmqService, err := zeromq.NewZeroMQService(bootstrap.ZeroMQ, appLogger)
		if err != nil {
			return fmt.Errorf("failed to create ZeroMQ service: %w", err)
		}
		configService.SetPublisher(zeromq.RegisterConfigHandlers(zmqService, configService, appLogger))
		zmqService.RegisterHandler(zeromq.MsgTypeStatusRequest, zeromq.NewStatusHandler(diagnosticService.Status))
		zmqService.RegisterHandler(zeromq.MsgTypeInjectMessage, zeromq.NewInjectHandler(director, appLogger))
		navigationService.SetPublisher(zmqService)
		teleopService.SetTelemetry(zmqService)
		diagnosticService.SetTelemetry(func() interface{} { return zmqService.Stats() })

		if err := zmqService.Start(); err != nil {
			return fmt.Errorf("failed to start ZeroMQ service: %w", err)
		}
		defer zmqService.Stop()
	} else {
		appLogger.Infof("ZeroMQ telemetry disabled")
	}

	configService.OnChange(func(cfg *config.Config) {
		registry.LoadFromConfig(cfg)
		processor.BindTopics(cfg, handlers)
		if err := bridge.SyncTopics(bridgeTopics(cfg)); err != nil {
			appLogger.Warnf("Failed to update bridge topics: %v", err)
		}
		navigationService.SetFrames(cfg.Frames.Parent, cfg.Frames.Child)
		teleopService.ApplyConfig(cfg)
	})

	director.Start()
	defer director.Stop()
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			appLogger.Errorf("Bridge client stopped: %v", err)
		}
	}()
	go teleopService.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "Robot Teleop Dashboard",
		ErrorHandler: customErrorHandler,
	})
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "teleop dashboard",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	apiGroup := app.Group("/api")

	nav := apiGroup.Group("/navigation")
	nav.Get("/map.png", navigationService.MapHandler)
	nav.Get("/pose", navigationService.PoseHandler)

	teleopRoutes := apiGroup.Group("/teleop")
	teleopRoutes.Post("/command", teleopService.CommandHandler)
	teleopRoutes.Post("/elevator/up", teleopService.ElevatorUpHandler)
	teleopRoutes.Post("/elevator/down", teleopService.ElevatorDownHandler)
	teleopRoutes.Get("/state", teleopService.StateHandler)

	apiGroup.Get("/diagnostics", diagnosticService.GetMetricsHandler)
	apiGroup.Get("/activity", diagnosticService.GetActivityHandler)

	api.RegisterConfigRoutes(app, configService, appLogger)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/joystick", websocket.New(func(conn *websocket.Conn) {
		api.JoystickWebSocketHandler(conn, appLogger.WithField("ws", "joystick"), teleopService)
	}))
	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		api.EventsWebSocketHandler(conn, events)
	}))

	go func() {
		appLogger.Infof("Server starting on port %d", bootstrap.Server.HTTPPort)
		if err := app.Listen(portAddress(bootstrap.Server.HTTPPort)); err != nil {
			appLogger.Errorf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Infof("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	appLogger.Infof("Server exited properly")
	return nil
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
