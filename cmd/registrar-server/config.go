package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	internalhttp "github.com/fleetware/registrar/internal/api/http"
	"github.com/fleetware/registrar/internal/db"
)

type Config struct {
	Log         LogConfig
	Http        internalhttp.Config
	Db          db.Config
	Ratelimit   RatelimitConfig
	Dedup       DedupConfig
	Credentials CredentialsConfig
}

type RatelimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

type DedupConfig struct {
	// WindowSeconds of 0 disables duplicate suppression.
	WindowSeconds int `mapstructure:"window_seconds"`
}

type CredentialsConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/registrar-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("ratelimit.per_minute", 1000)
	viper.SetDefault("dedup.window_seconds", 5)
	viper.SetDefault("credentials.cache_ttl_seconds", 300)

	_ = viper.BindEnv("db.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
