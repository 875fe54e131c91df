package mock

import (
	"context"
	"errors"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"

	k8s "github.com/spinvfx/spinfab/pkg/workloads/k8s"
)

// Client is a hand-written test double for the narrowed kubernetes
// client.
type Client struct {
	Impl struct {
		GetJob    func(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
		CreateJob func(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
		DeleteJob func(ctx context.Context, namespace string, name string) error
		GetPod    func(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
		ListPods  func(ctx context.Context, namespace string) ([]kubecore.Pod, error)
	}
}

var _ k8s.K8sClient = &Client{}

func New() *Client {
	return &Client{}
}

func (m *Client) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	if m.Impl.GetJob == nil {
		return nil, errors.New("mock: GetJob is not set")
	}
	return m.Impl.GetJob(ctx, namespace, name)
}

func (m *Client) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	if m.Impl.CreateJob == nil {
		return nil, errors.New("mock: CreateJob is not set")
	}
	return m.Impl.CreateJob(ctx, namespace, job)
}

func (m *Client) DeleteJob(ctx context.Context, namespace string, name string) error {
	if m.Impl.DeleteJob == nil {
		return errors.New("mock: DeleteJob is not set")
	}
	return m.Impl.DeleteJob(ctx, namespace, name)
}

func (m *Client) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	if m.Impl.GetPod == nil {
		return nil, errors.New("mock: GetPod is not set")
	}
	return m.Impl.GetPod(ctx, namespace, name)
}

func (m *Client) ListPods(ctx context.Context, namespace string) ([]kubecore.Pod, error) {
	if m.Impl.ListPods == nil {
		return nil, errors.New("mock: ListPods is not set")
	}
	return m.Impl.ListPods(ctx, namespace)
}
