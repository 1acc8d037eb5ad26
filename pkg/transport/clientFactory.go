package transport

import (
	"fmt"

	"github.com/zoff-tech/go-opqueue/pkg/config"
)

// NewClient builds the transport selected by the configuration.
func NewClient(cfg *config.APISettings) (Client, error) {
	switch cfg.Type {
	case "http":
		return NewHTTPClient(cfg)
	case "rabbitmq":
		return NewAmqpClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported api client type: %s", cfg.Type)
	}
}
