package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*KafkaOptions)(nil)

// KafkaOptions configure the "kafka" audit backend.
type KafkaOptions struct {
	Brokers []string `json:"brokers" mapstructure:"brokers"`
	Topic   string   `json:"topic" mapstructure:"topic"`
}

func NewKafkaOptions() *KafkaOptions {
	return &KafkaOptions{
		Topic: "seawatch.audit",
	}
}

func (o *KafkaOptions) Validate() []error {
	errors := []error{}

	if len(o.Brokers) > 0 && o.Topic == "" {
		errors = append(errors, fmt.Errorf("--kafka.topic must not be empty"))
	}

	return errors
}

func (o *KafkaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Brokers, "kafka.brokers", o.Brokers, "Kafka bootstrap brokers for the audit backend.")
	fs.StringVar(&o.Topic, "kafka.topic", o.Topic, "Kafka topic receiving audit records.")
}
