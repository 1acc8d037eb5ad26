package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zoff-tech/go-opqueue/pkg/config"
)

func TestInit_MissingServiceName(t *testing.T) {
	shutdown, err := Init(config.Observability{
		TracingURL: "http://localhost:4318",
	})
	assert.Error(t, err)
	assert.Nil(t, shutdown)
	assert.Equal(t, "service name cannot be empty", err.Error())
}

func TestInit_MissingTracingURL(t *testing.T) {
	shutdown, err := Init(config.Observability{
		ServiceName: "test-agent",
	})
	assert.Error(t, err)
	assert.Nil(t, shutdown)
	assert.Equal(t, "tracing URL cannot be empty", err.Error())
}

func TestInit_ValidSettings(t *testing.T) {
	shutdown, err := Init(config.Observability{
		ServiceName: "test-agent",
		TracingURL:  "localhost:4318",
	})
	assert.NoError(t, err)
	assert.NotNil(t, shutdown)
	shutdown()
}
