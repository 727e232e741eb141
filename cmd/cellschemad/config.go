// Config loading for the cellschemad daemon.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	configFileName = "cellschemad"
	configFileType = "yaml"

	cfgKeyListen        = "listen"
	cfgKeyLogLevel      = "log.level"
	cfgKeyDBDriver      = "db.driver"
	cfgKeyDBDSN         = "db.dsn"
	cfgKeyMaxProperties = "schema.max_properties_per_entity_type"
	cfgKeyServerTiming  = "observability.server_timing"

	defaultListen   = ":8080"
	defaultDriver   = "sqlite"
	defaultDSN      = "cellschema.db"
	defaultLogLevel = "info"
)

// config wraps the resolved viper instance.
type config struct {
	v *viper.Viper
}

// loadConfig reads the config file and environment. A missing file is not
// an error; defaults and CELLSCHEMA_* environment variables apply.
func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyDBDriver, defaultDriver)
	v.SetDefault(cfgKeyDBDSN, defaultDSN)
	v.SetDefault(cfgKeyMaxProperties, 0)
	v.SetDefault(cfgKeyServerTiming, false)

	v.SetEnvPrefix("CELLSCHEMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			return &config{v: v}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return &config{v: v}, nil
}

func (c *config) listenAddr() string {
	return c.v.GetString(cfgKeyListen)
}

func (c *config) driver() string {
	return c.v.GetString(cfgKeyDBDriver)
}

func (c *config) dsn() string {
	return c.v.GetString(cfgKeyDBDSN)
}

func (c *config) maxProperties() int {
	return c.v.GetInt(cfgKeyMaxProperties)
}

func (c *config) serverTiming() bool {
	return c.v.GetBool(cfgKeyServerTiming)
}

func (c *config) logLevel() slog.Level {
	switch strings.ToLower(c.v.GetString(cfgKeyLogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
