package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nsyszr/eventhub/config"
	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/service"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		StorageDriver:      config.StorageDriverMemory,
		PollInterval:       10 * time.Millisecond,
		ProcessingMinDelay: time.Millisecond,
		ProcessingMaxDelay: 2 * time.Millisecond,
		SubscriberTimeout:  time.Minute,
		SubscriberBuffer:   8,
		SSEHeartbeat:       time.Second,
		LogLevel:           "warn",
		LogFormat:          "text",
		BuildVersion:       "test",
	}
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	c := testConfig()
	c.LogLevel = "debug"
	c.LogFormat = "JSON"
	require.NoError(t, configureLogging(c))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	c.LogLevel = "loud"
	assert.Error(t, configureLogging(c))

	c.LogLevel = "info"
	c.LogFormat = "xml"
	assert.Error(t, configureLogging(c))
}

func TestOpenStore(t *testing.T) {
	c := testConfig()
	store, db, err := openStore(c)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Nil(t, db)

	c.StorageDriver = config.StorageDriverSQLite
	c.DatabaseURL = ":memory:"
	store, db, err = openStore(c)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	n, err := store.Events().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	c.StorageDriver = "mongodb"
	_, _, err = openStore(c)
	assert.Error(t, err)
}

func TestServerWiring(t *testing.T) {
	s, err := newAPIServer(testConfig())
	require.NoError(t, err)
	defer s.close()

	assert.Nil(t, s.consumer)
	require.NotNil(t, s.poller)

	e := s.newEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	require.NoError(t, s.startWorkers())

	m, err := s.svc.CreateEvent(context.Background(), &service.CreateEventRequest{
		Title:       "Deploy",
		Description: "Rolled out release 1.2",
		Source:      "ci",
		Type:        "deployment",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := s.svc.GetEventByID(context.Background(), m.ID)
		return err == nil && got.Status == model.EventStatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	s.cancel()
	s.wg.Wait()
}
