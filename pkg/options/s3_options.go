package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configure the object-store archive used by the "s3" audit backend.
type S3Options struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	BucketName      string `json:"bucket-name" mapstructure:"bucket-name"`
	Region          string `json:"region" mapstructure:"region"`

	// Prefix is prepended to every archived object key.
	Prefix string `json:"prefix" mapstructure:"prefix"`

	// FlushInterval and FlushSize bound how long and how many records are
	// buffered before an object is written.
	FlushInterval time.Duration `json:"flush-interval" mapstructure:"flush-interval"`
	FlushSize     int           `json:"flush-size" mapstructure:"flush-size"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		Endpoint:      "localhost:9000",
		UseSSL:        false,
		BucketName:    "seawatch-audit",
		Region:        "us-east-1",
		Prefix:        "audit",
		FlushInterval: 30 * time.Second,
		FlushSize:     1000,
	}
}

func (o *S3Options) Validate() []error {
	errors := []error{}

	if o.BucketName == "" {
		errors = append(errors, fmt.Errorf("--s3.bucket-name must not be empty"))
	}
	if o.FlushInterval <= 0 || o.FlushSize <= 0 {
		errors = append(errors, fmt.Errorf("--s3.flush-interval and --s3.flush-size must be positive"))
	}

	return errors
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "s3.endpoint", o.Endpoint, "S3 service endpoint (e.g. s3.amazonaws.com or minio.local:9000)")
	fs.StringVar(&o.AccessKeyID, "s3.access-key-id", o.AccessKeyID, "S3 access key ID")
	fs.StringVar(&o.SecretAccessKey, "s3.secret-access-key", o.SecretAccessKey, "S3 secret access key")
	fs.BoolVar(&o.UseSSL, "s3.use-ssl", o.UseSSL, "Enable SSL for S3 connection")
	fs.StringVar(&o.BucketName, "s3.bucket-name", o.BucketName, "S3 bucket name for the audit archive")
	fs.StringVar(&o.Region, "s3.region", o.Region, "S3 region")
	fs.StringVar(&o.Prefix, "s3.prefix", o.Prefix, "Object key prefix for archived audit batches")
	fs.DurationVar(&o.FlushInterval, "s3.flush-interval", o.FlushInterval, "Maximum time audit records are buffered before upload")
	fs.IntVar(&o.FlushSize, "s3.flush-size", o.FlushSize, "Maximum number of audit records per uploaded object")
}
