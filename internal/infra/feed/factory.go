package feed

import (
	"errors"
	"fmt"

	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/retry"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
)

// Config selects and configures a feed driver.
type Config struct {
	Driver string

	DatabaseURL string
	Channel     string

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	RabbitURL      string
	RabbitQueue    string
	RabbitPrefetch int
}

// New builds the feed named by cfg.Driver with the reconnect policy.
func New(cfg Config, policy retry.Policy) (repository.OrderFeed, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("postgres feed: database url is required")
		}
		f := NewPostgresFeed(cfg.DatabaseURL, policy)
		if cfg.Channel != "" {
			f.channel = cfg.Channel
		}
		return f, nil
	case DriverKafka:
		if len(splitBrokers(cfg.KafkaBrokers)) == 0 || cfg.KafkaTopic == "" {
			return nil, errors.New("kafka feed: brokers and topic are required")
		}
		return NewKafkaFeed(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, policy), nil
	case DriverRabbitMQ:
		if cfg.RabbitURL == "" || cfg.RabbitQueue == "" {
			return nil, errors.New("rabbitmq feed: url and queue are required")
		}
		return NewRabbitFeed(cfg.RabbitURL, cfg.RabbitQueue, cfg.RabbitPrefetch, policy), nil
	default:
		return nil, fmt.Errorf("unknown feed driver %q", cfg.Driver)
	}
}
