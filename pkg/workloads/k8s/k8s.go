package k8s

import (
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"context"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// subset of k8s.Clientset needed to spawn and watch tool jobs.
type K8sClient interface {
	GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
	CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error

	GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
	ListPods(ctx context.Context, namespace string) ([]kubecore.Pod, error)
}

type k8sClient struct {
	client *k8s.Clientset
}

var _ K8sClient = &k8sClient{}

func (k *k8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	foreground := kubeapimeta.DeletePropagationForeground
	zero := int64(0)
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		GracePeriodSeconds: &zero,
		PropagationPolicy:  &foreground,
	})
}

func (k *k8sClient) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	return k.client.CoreV1().Pods(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) ListPods(ctx context.Context, namespace string) ([]kubecore.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func WrapK8sClient(c *k8s.Clientset) K8sClient {
	return &k8sClient{client: c}
}

// FromCluster connects with the service account of the running pod.
func FromCluster() (K8sClient, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, xerrors.WrapWithNote("not running inside a cluster", err)
	}
	clientset, err := k8s.NewForConfig(config)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return WrapK8sClient(clientset), nil
}
