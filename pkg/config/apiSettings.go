package config

// APISettings holds configuration for the remote write API transport.
type APISettings struct {
	Type     string `mapstructure:"type" validate:"required,oneof=http rabbitmq"`
	BaseURL  string `mapstructure:"base_url"` // http: controller API base URL
	URL      string `mapstructure:"url"`      // rabbitmq: AMQP connection URL
	Exchange string `mapstructure:"exchange"` // rabbitmq: target exchange
}
