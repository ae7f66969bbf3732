package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/options"
)

// BoatGVK identifies the Boat custom resource. Boats are read as
// unstructured objects so the relay carries no generated API types.
//
//	apiVersion: fleet.seawatch.io/v1alpha1
//	kind: Boat
//	metadata: {name: b001}
//	spec: {vehicleId: B001, displayName: "Boat 1", gatewayAddress: "10.0.0.5:5000"}
var BoatGVK = schema.GroupVersionKind{Group: "fleet.seawatch.io", Version: "v1alpha1", Kind: "Boat"}

// Kube serves vehicles from Boat resources in one namespace.
type Kube struct {
	client    client.Reader
	namespace string
}

var _ Inventory = (*Kube)(nil)

// NewKube returns an inventory reading Boats through c.
func NewKube(c client.Reader, namespace string) *Kube {
	return &Kube{client: c, namespace: namespace}
}

// NewKubeConfig loads the REST config from an explicit kubeconfig path, or
// lets controller-runtime resolve in-cluster config or KUBECONFIG when the
// path is empty.
func NewKubeConfig(opts *options.KubeOptions) (*rest.Config, error) {
	var (
		cfg *rest.Config
		err error
	)
	if opts.KubeConfig == "" {
		cfg, err = config.GetConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", opts.KubeConfig)
	}
	if err != nil {
		log.Error(err, "failed to get kubernetes config")
		return nil, err
	}
	cfg.QPS = opts.QPS
	cfg.Burst = opts.Burst
	return cfg, nil
}

// NewKubeClient builds an uncached controller-runtime client.
func NewKubeClient(opts *options.KubeOptions) (client.Client, error) {
	cfg, err := NewKubeConfig(opts)
	if err != nil {
		return nil, err
	}
	return client.New(cfg, client.Options{})
}

// MetaName maps a vehicle id onto a Kubernetes object name.
func MetaName(id string) string {
	return strings.ReplaceAll(strings.ToLower(id), "_", "-")
}

func (k *Kube) LookupVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(BoatGVK)

	key := types.NamespacedName{Namespace: k.namespace, Name: MetaName(id)}
	if err := k.client.Get(ctx, key, u); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("vehicle %s: %w", id, core.ErrUnknownVehicle)
		}
		return nil, fmt.Errorf("get boat %s: %w", key, err)
	}

	v := toVehicle(u)
	// Two ids differing only in case map to one object name.
	if v.ID != id {
		return nil, fmt.Errorf("vehicle %s: %w", id, core.ErrUnknownVehicle)
	}
	return v, nil
}

func (k *Kube) LookupGatewayAddress(ctx context.Context, id string) (string, error) {
	return gatewayOf(ctx, k, id)
}

func (k *Kube) ListVehicles(ctx context.Context) ([]*model.Vehicle, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(BoatGVK.GroupVersion().WithKind(BoatGVK.Kind + "List"))

	if err := k.client.List(ctx, list, client.InNamespace(k.namespace)); err != nil {
		return nil, fmt.Errorf("list boats: %w", err)
	}

	out := make([]*model.Vehicle, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, toVehicle(&list.Items[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// toVehicle converts a Boat resource; spec.vehicleId defaults to the object name.
func toVehicle(u *unstructured.Unstructured) *model.Vehicle {
	id, _, _ := unstructured.NestedString(u.Object, "spec", "vehicleId")
	if id == "" {
		id = u.GetName()
	}
	name, _, _ := unstructured.NestedString(u.Object, "spec", "displayName")
	gw, _, _ := unstructured.NestedString(u.Object, "spec", "gatewayAddress")
	return &model.Vehicle{ID: id, Name: name, GatewayAddress: gw}
}
