package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuditOptions)(nil)

// AuditOptions configure the asynchronous audit sink.
type AuditOptions struct {
	// Backends lists where records go: any of "log", "sql", "kafka", "s3".
	Backends []string `json:"backends" mapstructure:"backends"`

	// QueueSize bounds records waiting to be written; overflow is dropped.
	QueueSize int `json:"queue-size" mapstructure:"queue-size"`

	// Workers is the number of goroutines draining the queue.
	Workers int `json:"workers" mapstructure:"workers"`
}

func NewAuditOptions() *AuditOptions {
	return &AuditOptions{
		Backends:  []string{"sql"},
		QueueSize: 4096,
		Workers:   2,
	}
}

func (o *AuditOptions) Validate() []error {
	errors := []error{}

	for _, b := range o.Backends {
		switch b {
		case "log", "sql", "kafka", "s3":
		default:
			errors = append(errors, fmt.Errorf("unknown --audit.backends entry %q", b))
		}
	}
	if o.QueueSize <= 0 || o.Workers <= 0 {
		errors = append(errors, fmt.Errorf("--audit.queue-size and --audit.workers must be positive"))
	}

	return errors
}

func (o *AuditOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Backends, "audit.backends", o.Backends, "Audit backends: log, sql, kafka, s3.")
	fs.IntVar(&o.QueueSize, "audit.queue-size", o.QueueSize, "Audit records buffered before new ones are dropped.")
	fs.IntVar(&o.Workers, "audit.workers", o.Workers, "Goroutines writing audit records.")
}
