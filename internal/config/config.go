package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Common is shared by every binary.
type Common struct {
	Env          string   `env:"ENV" env-default:"local"`
	LogLevel     string   `env:"LOG_LEVEL" env-default:"info"`
	ServiceName  string   `env:"SERVICE_NAME"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"kafka:9092"`
	OtelEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// ReconnectDelay is the fixed wait between kafka consumer reconnect attempts.
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" env-default:"5s"`
}

type API struct {
	Common
	HTTPAddr         string        `env:"HTTP_ADDR" env-default:":8081"`
	InventoryAddr    string        `env:"INVENTORY_ADDR" env-default:"inventory:50051"`
	PaymentURL       string        `env:"PAYMENT_URL" env-default:"http://payment:8082"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" env-default:"10s"`
	RestockAllowList []string      `env:"RESTOCK_ALLOW_LIST" env-separator:"," env-default:"P4"`
	FulfillmentGroup string        `env:"FULFILLMENT_GROUP" env-default:"order-api"`
	PendingGrace     time.Duration `env:"PENDING_GRACE" env-default:"30s"`
	RetryInterval    time.Duration `env:"PENDING_RETRY_INTERVAL" env-default:"1s"`
	MaxPending       int           `env:"PENDING_MAX_EVENTS" env-default:"10000"`
}

type Inventory struct {
	Common
	GRPCAddr     string   `env:"GRPC_ADDR" env-default:":50051"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	AllowRestock []string `env:"RESTOCK_ALLOW_LIST" env-separator:"," env-default:"P4"`
	DataFile     string   `env:"INVENTORY_DATA_FILE"`
}

type Payment struct {
	Common
	HTTPAddr     string `env:"HTTP_ADDR" env-default:":8082"`
	AccountsFile string `env:"PAYMENT_ACCOUNTS_FILE"`
}

type Warehouse struct {
	Common
	RedisAddr string        `env:"REDIS_ADDR" env-default:"redis:6379"`
	StepDelay time.Duration `env:"WAREHOUSE_STEP_DELAY" env-default:"5s"`
	Workers   int           `env:"WAREHOUSE_WORKERS" env-default:"4"`
	Group     string        `env:"WAREHOUSE_GROUP" env-default:"warehouse"`
}

type EventLog struct {
	Common
	LogFile string `env:"EVENT_LOG_FILE" env-default:"events.log"`
	Group   string `env:"EVENT_LOG_GROUP" env-default:"eventlog"`
}

// Load reads an optional .env file and then the environment into cfg.
// An empty ServiceName falls back to service.
func Load[T any](cfg *T, service string, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	// a missing .env is normal outside local development
	_ = godotenv.Load(files...)

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if c, ok := any(cfg).(interface{ common() *Common }); ok && c.common().ServiceName == "" {
		c.common().ServiceName = service
	}
	return nil
}

func (c *Common) common() *Common { return c }
