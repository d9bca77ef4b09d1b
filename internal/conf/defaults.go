package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pipeconf/pipeconf/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("server.listen", "127.0.0.1:5006")
	viper.SetDefault("server.debug", false)
	viper.SetDefault("server.readtimeout", 30*time.Second)
	viper.SetDefault("server.writetimeout", 60*time.Second)
	viper.SetDefault("server.shutdowntimeout", 10*time.Second)
	viper.SetDefault("server.maxbodysize", "4M")

	viper.SetDefault("backend.url", "http://127.0.0.1:5005")
	viper.SetDefault("backend.timeout", 10*time.Second)
	viper.SetDefault("backend.useragent", "pipeconf")
	viper.SetDefault("backend.ratelimit", 0.0)
	viper.SetDefault("backend.burst", 5)

	viper.SetDefault("session.ttl", 2*time.Hour)
	viper.SetDefault("session.cleanupinterval", 10*time.Minute)
	viper.SetDefault("session.maxhistory", 100)

	viper.SetDefault("datastore.enabled", false)
	viper.SetDefault("datastore.type", "sqlite")
	viper.SetDefault("datastore.sqlite.path", "pipeconf.db")
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", "3306")
	viper.SetDefault("datastore.mysql.database", "pipeconf")
	viper.SetDefault("datastore.retain", 200)

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.sentrydsn", "")
	viper.SetDefault("telemetry.metrics", true)
}
