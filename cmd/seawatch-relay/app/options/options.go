package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/seawatch-io/seawatch/internal/relay"
	"github.com/seawatch-io/seawatch/pkg/app"
	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/options"
)

type RelayServerOptions struct {
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	GrpcOptions      *options.GrpcOptions      `json:"grpc" mapstructure:"grpc"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	KubeOptions      *options.KubeOptions      `json:"kube" mapstructure:"kube"`
	AuthOptions      *options.AuthOptions      `json:"auth" mapstructure:"auth"`
	DatabaseOptions  *options.DatabaseOptions  `json:"database" mapstructure:"database"`
	RedisOptions     *options.RedisOptions     `json:"redis" mapstructure:"redis"`
	KafkaOptions     *options.KafkaOptions     `json:"kafka" mapstructure:"kafka"`
	RelayOptions     *options.RelayOptions     `json:"relay" mapstructure:"relay"`
	AuditOptions     *options.AuditOptions     `json:"audit" mapstructure:"audit"`
	InventoryOptions *options.InventoryOptions `json:"inventory" mapstructure:"inventory"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RelayServerOptions)(nil)

func NewRelayServerOptions() *RelayServerOptions {
	return &RelayServerOptions{
		HttpOptions:      options.NewHttpOptions(),
		GrpcOptions:      options.NewGrpcOptions(),
		MqttOptions:      options.NewMqttOptions(),
		S3Options:        options.NewS3Options(),
		KubeOptions:      options.NewKubeOptions(),
		AuthOptions:      options.NewAuthOptions(),
		DatabaseOptions:  options.NewDatabaseOptions(),
		RedisOptions:     options.NewRedisOptions(),
		KafkaOptions:     options.NewKafkaOptions(),
		RelayOptions:     options.NewRelayOptions(),
		AuditOptions:     options.NewAuditOptions(),
		InventoryOptions: options.NewInventoryOptions(),
		Log:              log.NewOptions(),
	}
}

func (o *RelayServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.KubeOptions.AddFlags(fss.FlagSet("kube"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.KafkaOptions.AddFlags(fss.FlagSet("kafka"))
	o.RelayOptions.AddFlags(fss.FlagSet("relay"))
	o.AuditOptions.AddFlags(fss.FlagSet("audit"))
	o.InventoryOptions.AddFlags(fss.FlagSet("inventory"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete initializes logging so every sub-command logs the same way.
func (o *RelayServerOptions) Complete() error {
	log.Init(o.Log)
	ctrllog.SetLogger(log.Std().Logr())
	return nil
}

func (o *RelayServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.KubeOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.KafkaOptions.Validate()...)
	errs = append(errs, o.RelayOptions.Validate()...)
	errs = append(errs, o.AuditOptions.Validate()...)
	errs = append(errs, o.InventoryOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	if o.RelayOptions.Forwarder == "mqtt" && !o.MqttOptions.Enabled() {
		errs = append(errs, fmt.Errorf("--relay.forwarder=mqtt requires --mqtt.broker"))
	}
	for _, b := range o.AuditOptions.Backends {
		switch b {
		case "kafka":
			if len(o.KafkaOptions.Brokers) == 0 {
				errs = append(errs, fmt.Errorf("--audit.backends=kafka requires --kafka.brokers"))
			}
		case "s3":
			errs = append(errs, o.S3Options.Validate()...)
		}
	}

	return utilerrors.NewAggregate(errs)
}

func (o *RelayServerOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		HttpOptions:      o.HttpOptions,
		GrpcOptions:      o.GrpcOptions,
		MqttOptions:      o.MqttOptions,
		S3Options:        o.S3Options,
		KubeOptions:      o.KubeOptions,
		AuthOptions:      o.AuthOptions,
		DatabaseOptions:  o.DatabaseOptions,
		RedisOptions:     o.RedisOptions,
		KafkaOptions:     o.KafkaOptions,
		RelayOptions:     o.RelayOptions,
		AuditOptions:     o.AuditOptions,
		InventoryOptions: o.InventoryOptions,
	}, nil
}
