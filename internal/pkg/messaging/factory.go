package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

// ErrUnknownDriver indicates an unsupported messaging driver.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions carries the settings of every driver; only the selected
// one is read.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
}

var drivers = map[string]func(context.Context, FactoryOptions) (Messaging, error){
	DriverNSQ: func(_ context.Context, o FactoryOptions) (Messaging, error) {
		return nonNil(NewNSQ(o.NSQ))
	},
	DriverNATS: func(_ context.Context, o FactoryOptions) (Messaging, error) {
		return nonNil(NewNATS(o.NATS))
	},
	DriverKafka: func(_ context.Context, o FactoryOptions) (Messaging, error) {
		return nonNil(NewKafka(o.Kafka))
	},
	DriverGooglePubSub: func(ctx context.Context, o FactoryOptions) (Messaging, error) {
		return nonNil(NewPubSub(ctx, o.PubSub))
	},
}

// NewFromDriver builds the Messaging named by driver.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	build, ok := drivers[strings.TrimSpace(driver)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return build(ctx, opts)
}

// nonNil keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func nonNil[T Messaging](v T, err error) (Messaging, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
