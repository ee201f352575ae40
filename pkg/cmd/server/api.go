package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/eventhub/config"
	"github.com/nsyszr/eventhub/pkg/api"
	"github.com/nsyszr/eventhub/pkg/dispatcher"
	"github.com/nsyszr/eventhub/pkg/notification"
	"github.com/nsyszr/eventhub/pkg/observability"
	"github.com/nsyszr/eventhub/pkg/queue"
	queuememory "github.com/nsyszr/eventhub/pkg/queue/memory"
	"github.com/nsyszr/eventhub/pkg/queue/natsio"
	"github.com/nsyszr/eventhub/pkg/service"
	"github.com/nsyszr/eventhub/pkg/storage"
	"github.com/nsyszr/eventhub/pkg/storage/memory"
	"github.com/nsyszr/eventhub/pkg/storage/sqldb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type apiServer struct {
	c      *config.Config
	quitCh chan bool
	doneCh chan bool

	db  *sqlx.DB
	nc  *nats.Conn
	wg  sync.WaitGroup
	hub *notification.Hub
	svc *service.EventService

	dispatcher *dispatcher.Dispatcher
	poller     queue.Poller
	consumer   queue.Consumer
	broker     *natsio.Broker

	ctx    context.Context
	cancel context.CancelFunc
}

func init() {
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)

	// Output to stdout instead of the default stderr
	log.SetOutput(os.Stdout)

	log.SetLevel(log.InfoLevel)
}

// configureLogging applies LOG_LEVEL and LOG_FORMAT.
func configureLogging(c *config.Config) error {
	if c.LogLevel != "" {
		level, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			return errors.Wrap(err, "invalid LOG_LEVEL")
		}
		log.SetLevel(level)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid LOG_FORMAT '%s'", c.LogFormat)
	}

	return nil
}

// openStore creates the event store selected by STORAGE_DRIVER. SQL stores
// are migrated before use. The returned db is nil for the memory store.
func openStore(c *config.Config) (storage.Interface, *sqlx.DB, error) {
	switch c.StorageDriver {
	case "", config.StorageDriverMemory:
		return memory.NewStore(), nil, nil
	case config.StorageDriverPostgres, config.StorageDriverSQLite:
		db, err := sqldb.Open(c.StorageDriver, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		n, err := sqldb.Migrate(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.WithFields(log.Fields{
			"driver":     c.StorageDriver,
			"migrations": n,
		}).Info("Database ready")
		return sqldb.NewStore(db), db, nil
	}
	return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER '%s'", c.StorageDriver)
}

func newAPIServer(c *config.Config) (*apiServer, error) {
	if err := configureLogging(c); err != nil {
		return nil, err
	}

	s := &apiServer{
		c:      c,
		quitCh: make(chan bool),
		doneCh: make(chan bool),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	store, db, err := openStore(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open event store")
	}
	s.db = db

	var publisher queue.Publisher
	if c.BrokerEnabled {
		broker, err := s.connectBroker()
		if err != nil {
			s.close()
			return nil, err
		}
		publisher = broker
		s.consumer = broker
		s.broker = broker
	} else {
		q := queuememory.NewQueue()
		publisher = q
		s.poller = q
	}

	metrics := observability.NewMetricsRecorder()

	s.hub = notification.NewHub(notification.Config{
		BufferSize: c.SubscriberBuffer,
		Lifetime:   c.SubscriberTimeout,
		Metrics:    metrics,
	})
	s.svc = service.NewEventService(store.Events(), publisher, s.hub, metrics)
	s.dispatcher = dispatcher.New(
		dispatcher.NewSimulatedProcessor(c.ProcessingMinDelay, c.ProcessingMaxDelay),
		s.svc,
		metrics,
	)

	return s, nil
}

func (s *apiServer) connectBroker() (*natsio.Broker, error) {
	nc, err := nats.Connect(s.c.NATSServerURL,
		nats.Name("eventhub"),
		nats.DrainTimeout(shutdownTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("NATS error: ", err)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected: ", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	s.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create JetStream context")
	}

	return natsio.NewBroker(js, natsio.Config{
		Stream:        s.c.EventsStream,
		Subject:       s.c.EventsSubject,
		ConsumerGroup: s.c.ConsumerGroup,
		AckTimeout:    s.c.BrokerAckTimeout,
	})
}

// startWorkers runs the dispatcher and the scheduled cleanup until the
// server context is cancelled.
func (s *apiServer) startWorkers() error {
	if s.consumer != nil {
		if err := s.dispatcher.Consume(s.ctx, s.consumer); err != nil {
			return err
		}
	}

	if s.poller != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatcher.RunPoller(s.ctx, s.poller, s.c.PollInterval)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.svc.RunCleanup(s.ctx, s.c.CleanupInterval)
	}()

	return nil
}

func (s *apiServer) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORS())
	e.Use(api.Logger())

	apiHandler := api.NewHandler(s.svc, s.hub, s.c.SSEHeartbeat, s.c.BuildVersion)
	apiHandler.RegisterRoutes(e)

	return e
}

func (s *apiServer) Serve() {
	e := s.newEcho()

	go func() {
		log.WithFields(log.Fields{
			"host":    s.c.BindHost,
			"port":    s.c.BindPort,
			"storage": s.c.StorageDriver,
			"broker":  s.c.BrokerEnabled,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil {
			log.Info("Shutting down the server")
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	// Stop taking broker messages first, the backlog stays in the stream
	s.stopConsuming()

	// Stop the workers and end all subscriber streams
	s.cancel()
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown the echo web server
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Failed to shutdown server: ", err)
	}

	s.wg.Wait()

	// We've done!
	s.doneCh <- true
}

func (s *apiServer) stopConsuming() {
	if s.broker == nil {
		return
	}
	if err := s.broker.Drain(shutdownTimeout); err != nil {
		log.Warn("Failed to stop consuming events: ", err)
	}
}

func (s *apiServer) close() {
	s.cancel()
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *apiServer) Shutdown() {
	// Send the quit signal to the server.Serve() routine
	s.quitCh <- true

	// Wait for the broker drain and the web server shutdown
	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(2 * shutdownTimeout):
		log.Error("Shutdown server failed")
	}

	s.close()
}

func RunServeAPI(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		s, err := newAPIServer(c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}

		if err := s.startWorkers(); err != nil {
			log.Error("failed to start event dispatcher: ", err)
			s.close()
			os.Exit(1)
		}

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		// Shutdown the server
		s.Shutdown()
	}
}
