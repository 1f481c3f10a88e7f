package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/libtrack/borrowing-service/internal/checkout"
	"github.com/libtrack/borrowing-service/internal/notify"
	"github.com/libtrack/borrowing-service/pkg/kafka"
	"github.com/libtrack/borrowing-service/pkg/logger"
	"github.com/libtrack/borrowing-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration
}

type Sweep struct {
	Interval time.Duration `yaml:"interval" envconfig:"SWEEP_INTERVAL" default:"24h"`
}

type Config struct {
	Server   HTTPServer      `yaml:"server"`
	Database postgres.DB     `yaml:"db"`
	Kafka    kafka.Config    `yaml:"kafka"`
	Checkout checkout.Config `yaml:"checkout"`
	Telegram notify.Config   `yaml:"telegram"`
	Sweep    Sweep           `yaml:"sweep"`
	Log      logger.Log      `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
