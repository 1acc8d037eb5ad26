package config

// StoreSettings selects and configures the queue store backend.
type StoreSettings struct {
	Type       string `mapstructure:"type" validate:"required,oneof=sqlite postgres mongo"`
	Path       string `mapstructure:"path"`       // sqlite database file
	DSN        string `mapstructure:"dsn"`        // postgres connection string
	URI        string `mapstructure:"uri"`        // mongo connection URI
	Database   string `mapstructure:"database"`   // mongo database name
	Collection string `mapstructure:"collection"` // mongo collection name
}
