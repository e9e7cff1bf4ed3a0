package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/weftflow/weft/pkg/channels/gochannel"
	"github.com/weftflow/weft/pkg/channels/kafka"
	"github.com/weftflow/weft/pkg/eventbus"
)

// NewEventBus builds the lifecycle event bus. Kafka connects to the brokers
// named in KAFKA_BROKERS; the default in-process channel suits single-binary
// deployments.
func NewEventBus(provider, serviceName string, logger *slog.Logger) eventbus.EventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		pub, sub := gochannel.CreateChannel(wmLogger)

		return eventbus.NewWatermillEventBus(pub, sub)
	}
}
