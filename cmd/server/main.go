package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pipprompter/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "PIP_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	host = configVar[string]{
		envKey:       "PIP_SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "PIP_SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "PIP_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	pagePath = configVar[string]{
		envKey:       "PIP_PAGE_PATH",
		flagKey:      "page-path",
		defaultValue: "web/index.html",
	}
	tickInterval = configVar[time.Duration]{
		envKey:       "PIP_TICK_INTERVAL",
		flagKey:      "tick-interval",
		defaultValue: time.Second,
	}
	scrollStep = configVar[float64]{
		envKey:       "PIP_SCROLL_STEP",
		flagKey:      "scroll-step",
		defaultValue: 0.1,
	}
	scrollLoop = configVar[bool]{
		envKey:       "PIP_SCROLL_LOOP",
		flagKey:      "scroll-loop",
		defaultValue: true,
	}
	redisHost = configVar[string]{
		envKey:       "PIP_REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
	}
	redisPort = configVar[int]{
		envKey:       "PIP_REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "PIP_REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	redisChannel = configVar[string]{
		envKey:       "PIP_REDIS_CHANNEL",
		flagKey:      "redis-channel",
		defaultValue: "pipprompter:state",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret for control tokens, empty disables access control")
	pflag.String(host.flagKey, host.defaultValue, "Control server address")
	pflag.Int(port.flagKey, port.defaultValue, "Control server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(pagePath.flagKey, pagePath.defaultValue, "Control page file, the embedded page is used when missing")
	pflag.Duration(tickInterval.flagKey, tickInterval.defaultValue, "Autoscroll tick interval")
	pflag.Float64(scrollStep.flagKey, scrollStep.defaultValue, "Percent advanced per tick for each unit of speed")
	pflag.Bool(scrollLoop.flagKey, scrollLoop.defaultValue, "Restart scrolling from the top after reaching the end")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host, empty disables publishing")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(redisChannel.flagKey, redisChannel.defaultValue, "Redis channel for state snapshots")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(pagePath.flagKey, pagePath.envKey)
	viper.BindEnv(tickInterval.flagKey, tickInterval.envKey)
	viper.BindEnv(scrollStep.flagKey, scrollStep.envKey)
	viper.BindEnv(scrollLoop.flagKey, scrollLoop.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(redisChannel.flagKey, redisChannel.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(pagePath.flagKey, pagePath.defaultValue)
	viper.SetDefault(tickInterval.flagKey, tickInterval.defaultValue)
	viper.SetDefault(scrollStep.flagKey, scrollStep.defaultValue)
	viper.SetDefault(scrollLoop.flagKey, scrollLoop.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(redisChannel.flagKey, redisChannel.defaultValue)

	config := &app.AppConfig{
		Secret:        viper.GetString(secret.flagKey),
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		PagePath:      viper.GetString(pagePath.flagKey),
		TickInterval:  viper.GetDuration(tickInterval.flagKey),
		ScrollStep:    viper.GetFloat64(scrollStep.flagKey),
		ScrollLoop:    viper.GetBool(scrollLoop.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
		RedisChannel:  viper.GetString(redisChannel.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
