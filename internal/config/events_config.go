package config

import (
	"os"
	"time"
)

type Events struct{}

var _ EventsConfig = Events{}

func (Events) GetEventsEnabled() bool {
	return GetEnvBool("EVENTS_ENABLED", true)
}

func (Events) GetEventsConsumerGroup() string {
	return GetEnv("EVENTS_CONSUMER_GROUP", "auth-gateway")
}

func (Events) GetEventsConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "gateway"
	}
	return GetEnv("EVENTS_CONSUMER_NAME", host)
}

func (Events) GetEventsWorkers() int {
	return GetEnvInt("EVENTS_WORKERS", 4)
}

func (Events) GetEventsBlock() time.Duration {
	return GetEnvDuration("EVENTS_BLOCK", 5*time.Second)
}

// GetEventsStreams lists the Redis streams carrying user lifecycle events, one per topic
func (Events) GetEventsStreams() []string {
	return GetEnvList("EVENTS_STREAMS", []string{"user.created", "user.updated", "user.deleted"})
}
