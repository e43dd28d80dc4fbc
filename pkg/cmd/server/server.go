package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/config"
	"github.com/mpapenbr/gaterace-service-go/pkg/db/postgres"
	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/build"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/leaderboard"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/session"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/trackcache"
	bobRepos "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob"
	"github.com/mpapenbr/gaterace-service-go/pkg/transport/httpapi"
	natsTransport "github.com/mpapenbr/gaterace-service-go/pkg/transport/nats"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils/broadcast"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const eventBufferSize = 4096

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the gate race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	cmd.Flags().StringVarP(&config.HTTPServerAddr,
		"http-server-addr",
		"a",
		"localhost:8080",
		"listen address of the status API")
	cmd.Flags().StringVar(&config.NatsBucket,
		"nats-bucket",
		natsTransport.DefaultBucket,
		"JetStream key value bucket for best times")
	cmd.Flags().StringVar(&config.MinClientVersion,
		"min-client-version",
		utils.RequiredClientVersion,
		"commands of older clients are rejected")

	cmd.Flags().IntVar(&config.MaxPathLength,
		"max-path-length",
		gate.DefaultMaxPathLength,
		"max number of boundary blocks of a gate")
	cmd.Flags().IntVar(&config.MaxGatesPerTrack,
		"max-gates",
		build.DefaultMaxGates,
		"max number of gates of a track")
	cmd.Flags().IntVar(&config.BestTimesLimit,
		"best-times-limit",
		leaderboard.DefaultLimit,
		"number of entries in the leaderboard")
	cmd.Flags().Int64Var(&config.LapTimeCeiling,
		"lap-time-ceiling",
		race.MaxLapMillis,
		"laps taking longer (ms) are not recorded")

	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"restricts log output by logger name (e.g. \"debug:race.* info:*\")")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use stdout for local output)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().BoolVar(&config.PrintMessage,
		"print-message",
		false,
		"if true and log level is debug, the message payload will be printed")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func setupLogger() (logger, sqlLogger *log.Logger) {
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.New(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if filtered, err := logger.WithFilter(config.LogFilter); err == nil {
		logger = filtered
	} else {
		logger.Warn("Ignoring invalid log filter", log.ErrorField(err))
	}
	return logger, sqlLogger
}

//nolint:funlen,cyclop // by design
func startServer() error {
	logger, sqlLogger := setupLogger()
	log.ResetDefault(logger)
	defer func() { _ = log.Sync() }()

	log.Debug("Config:",
		log.String("db", config.DB),
		log.String("nats", config.NatsURL),
		log.String("http", config.HTTPServerAddr),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	waitForRequiredServices()

	var telemetry *config.Telemetry
	sqlLevel := parseLogLevel(config.SQLLogLevel, log.DebugLevel)
	pgTraceOption := postgres.WithTracer(sqlLogger, sqlLevel)
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(context.Background()); err == nil {
			pgTraceOption = postgres.WithOtlpTracer(sqlLogger, sqlLevel)
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	log.Info("Starting server")
	pool, err := postgres.InitWithURL(config.DB, pgTraceOption)
	if err != nil {
		log.Error("database not available", log.ErrorField(err))
		return err
	}
	defer pool.Close()

	conn, err := nats.Connect(config.NatsURL,
		nats.Name("grs"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", log.ErrorField(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", log.String("url", c.ConnectedUrl()))
		}))
	if err != nil {
		log.Error("nats not available", log.ErrorField(err))
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := newStack(ctx, pool, conn)
	if err != nil {
		log.Error("server could not be started", log.ErrorField(err))
		return err
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.api.Start(ctx)
	}()

	log.Info("Server started")
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err = <-httpErr:
		if err != nil {
			log.Error("http server stopped", log.ErrorField(err))
		}
	}

	s.shutdown()
	cancel()
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Server terminated")
	return err
}

// stack holds the wired components of a running server.
type stack struct {
	sink      *event.ChannelSink
	events    broadcast.BroadcastServer[event.Event]
	machine   *session.Machine
	sub       *nats.Subscription
	api       *httpapi.Server
	publisher sync.WaitGroup
}

//nolint:funlen // wiring
func newStack(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) (*stack, error) {
	repos := bobRepos.NewRepositoriesFromPool(pool)
	txMgr := bobRepos.NewTransactionManagerFromPool(pool)
	world := voxel.NewWorld()
	names := race.NewNames()
	gateOpts := []gate.Option{gate.WithMaxPathLength(config.MaxPathLength)}

	s := &stack{sink: event.NewChannelSink(eventBufferSize)}
	s.events = broadcast.NewBroadcastServer("events", s.sink.C(),
		broadcast.WithTelemetry[event.Event]("events"))

	publisher := natsTransport.NewPublisher(conn,
		natsTransport.WithPrintMessage(config.PrintMessage))
	events := s.events.Subscribe()
	s.publisher.Add(1)
	go func() {
		defer s.publisher.Done()
		publisher.Run(ctx, events)
	}()

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	kv, err := natsTransport.NewBestTimesKV(ctx, js, config.NatsBucket)
	if err != nil {
		return nil, err
	}

	board := leaderboard.New(repos.Lap(),
		leaderboard.WithLimit(config.BestTimesLimit),
		leaderboard.WithSink(s.sink),
		leaderboard.WithNames(names),
		leaderboard.WithMirror(kv))
	tracks := trackcache.New(trackcache.NewRepoLoader(repos, world, gateOpts...))
	s.machine = session.New(tracks,
		session.WithSink(s.sink),
		session.WithNames(names),
		session.WithLapRecorder(board),
		session.WithLapCeiling(config.LapTimeCeiling))
	builder := build.New(repos, world,
		build.WithSink(s.sink),
		build.WithNames(names),
		build.WithRacing(s.machine),
		build.WithForgetter(board),
		build.WithMaxGates(config.MaxGatesPerTrack),
		build.WithGateOptions(gateOpts...),
		build.WithTxManager(txMgr))

	dispatcher := natsTransport.NewDispatcher(s.machine, builder, world, names,
		natsTransport.WithMinClientVersion(config.MinClientVersion))
	if s.sub, err = dispatcher.Subscribe(conn); err != nil {
		return nil, err
	}

	s.api = httpapi.NewServer(
		httpapi.WithAddr(config.HTTPServerAddr),
		httpapi.WithTracks(repos.Track()),
		httpapi.WithBestTimes(board),
		httpapi.WithNames(names),
		httpapi.WithStats(func() map[string]int {
			cs := tracks.Stats()
			return map[string]int{
				"racers":       s.machine.Racers(),
				"tracks":       cs.Tracks,
				"participants": cs.Participants,
				"dropped":      int(s.sink.Dropped()),
			}
		}))
	return s, nil
}

// shutdown stops accepting commands, waits for pending laps and drains
// the remaining events to NATS.
func (s *stack) shutdown() {
	if err := s.sub.Drain(); err != nil {
		log.Warn("could not drain command subscription", log.ErrorField(err))
	}
	s.machine.Close()
	s.sink.Close()
	s.publisher.Wait()
	s.events.Close()
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func waitForRequiredServices() {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	checkTCP := func(addr string) {
		if err := utils.WaitForTCP(addr, timeout); err != nil {
			log.Fatal("required services not ready", log.ErrorField(err))
		}
		wg.Done()
	}

	if postgresAddr := utils.ExtractFromDBURL(config.DB); postgresAddr != "" {
		wg.Add(1)
		go checkTCP(postgresAddr)
	}
	if natsAddr := utils.ExtractFromNatsURL(config.NatsURL); natsAddr != "" {
		wg.Add(1)
		go checkTCP(natsAddr)
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}
