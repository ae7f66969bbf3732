package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*KubeOptions)(nil)

// KubeOptions contains configuration for Kubernetes client interactions.
type KubeOptions struct {
	// Namespace is the Kubernetes namespace holding Boat resources.
	Namespace string `json:"namespace" mapstructure:"namespace"`

	// KubeConfig is the path to the kubeconfig file.
	// If empty, it defaults to in-cluster config or standard KUBECONFIG env.
	KubeConfig string `json:"kubeconfig" mapstructure:"kubeconfig"`

	// QPS and Burst tune the client-side rate limiter.
	QPS   float32 `json:"qps" mapstructure:"qps"`
	Burst int     `json:"burst" mapstructure:"burst"`
}

// NewKubeOptions creates a new KubeOptions with default values.
func NewKubeOptions() *KubeOptions {
	return &KubeOptions{
		Namespace:  "seawatch-system",
		KubeConfig: "", // empty lets controller-runtime resolve in-cluster or KUBECONFIG
		QPS:        20,
		Burst:      30,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *KubeOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Namespace == "" {
		errors = append(errors, fmt.Errorf("--kube.namespace must not be empty"))
	}
	if o.QPS < 0 || o.Burst < 0 {
		errors = append(errors, fmt.Errorf("--kube.qps and --kube.burst must not be negative"))
	}

	return errors
}

// AddFlags adds flags for KubeOptions to the specified FlagSet.
func (o *KubeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Namespace, "kube.namespace", o.Namespace, "The Kubernetes namespace holding Boat resources.")
	fs.Float32Var(&o.QPS, "kube.qps", o.QPS, "Maximum queries per second to the API server.")
	fs.IntVar(&o.Burst, "kube.burst", o.Burst, "Maximum burst of queries to the API server.")
	fs.StringVar(&o.KubeConfig, "kube.kubeconfig", o.KubeConfig, "Path to kubeconfig file with authorization and master location information.")
}
