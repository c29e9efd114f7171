package messaging

import "github.com/segmentio/kafka-go"

// headerCarrier exposes Kafka message headers to the otel propagator.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	if h, ok := c.find(key); ok {
		return string(c.msg.Headers[h].Value)
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	if h, ok := c.find(key); ok {
		c.msg.Headers[h].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c headerCarrier) find(key string) (int, bool) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			return i, true
		}
	}
	return -1, false
}

// EventTypeHeader names the header that carries the event type.
const EventTypeHeader = "event-type"

func eventType(msg *kafka.Message) string {
	return headerCarrier{msg: msg}.Get(EventTypeHeader)
}
