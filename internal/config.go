package internal

import (
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	// BufferSize is the capacity of the orchestrator's domain-event channel;
	// ConnectionBufferSize bounds each connection's outbound queue.
	BufferSize           int `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`

	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,required=true"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	DebugPort int `env:"DEBUG_PORT,default=8081"`
}
