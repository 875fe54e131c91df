package k8s

import (
	"context"
	"os"
	"strings"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Environment variables passed to the runner entrypoint.
const (
	EnvJobID   = "JOBCONF_JOB_ID"
	EnvJobName = "JOBCONF_JOB_NAME"
	EnvJobFile = "JOBCONF_JOB_FILE"
)

// ErrJobExists rejects launching a job whose name is already taken.
var ErrJobExists = xerrors.New("a job with the same name already exists")

// LauncherConfig shapes the tool jobs a Launcher spawns.
type LauncherConfig struct {
	// Namespace the jobs run in.
	Namespace string

	// AppName labels the jobs and identifies the reference pod when
	// the own hostname cannot be resolved.
	AppName string

	// Image of the runner entrypoint.
	Image string

	// Command run in the container.
	Command []string

	BackoffLimit int32
	TTLSeconds   int32
}

// Launcher spawns one kubernetes job per due job request.
//
// The job containers clone the launcher pod's envFrom, volumes and
// volume mounts, so the runner sees the same secrets and shared
// filesystems as the scheduler itself.
type Launcher struct {
	client K8sClient
	config LauncherConfig
}

func NewLauncher(client K8sClient, config LauncherConfig) *Launcher {
	return &Launcher{client: client, config: config}
}

// Launch creates the job for a job request.
//
// jobFile is the path of the job's configuration document on the
// shared filesystem, handed to the runner via environment.
func (l *Launcher) Launch(ctx context.Context, jobID string, jobFile string) error {
	jobName := jobID

	existing, err := l.client.GetJob(ctx, l.config.Namespace, jobName)
	if err != nil && !kubeerr.IsNotFound(err) {
		return xerrors.WrapWithNote("unable to check if the job already exists", err)
	}
	if existing != nil && err == nil {
		return xerrors.Wrap(ErrJobExists)
	}

	reference, err := l.referencePod(ctx)
	if err != nil {
		return err
	}

	job := l.buildJob(jobID, jobName, jobFile, reference)
	if _, err := l.client.CreateJob(ctx, l.config.Namespace, job); err != nil {
		return xerrors.WrapWithNote("job creation failed", err)
	}
	return nil
}

// referencePod finds the pod whose mounts and env sources the tool job
// clones. The own pod is found by hostname; when that fails, any pod
// of the same app serves.
func (l *Launcher) referencePod(ctx context.Context) (*kubecore.Pod, error) {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		pod, err := l.client.GetPod(ctx, l.config.Namespace, hostname)
		if err == nil {
			return pod, nil
		}
		if !kubeerr.IsNotFound(err) {
			return nil, xerrors.WrapWithNote("unable to retrieve own pod", err)
		}
	}

	pods, err := l.client.ListPods(ctx, l.config.Namespace)
	if err != nil {
		return nil, xerrors.WrapWithNote("unable to list pods for reference", err)
	}
	for i := range pods {
		if strings.HasPrefix(pods[i].Name, l.config.AppName) {
			return &pods[i], nil
		}
	}
	return nil, xerrors.New("no reference pod found for app " + l.config.AppName)
}

func (l *Launcher) buildJob(jobID string, jobName string, jobFile string, reference *kubecore.Pod) *kubebatch.Job {
	var envFrom []kubecore.EnvFromSource
	var mounts []kubecore.VolumeMount
	if len(reference.Spec.Containers) > 0 {
		first := reference.Spec.Containers[0]
		envFrom = first.EnvFrom

		// Mounts under /var/ belong to the pod infrastructure, not to
		// the shared studio filesystems.
		for _, m := range first.VolumeMounts {
			if strings.HasPrefix(m.MountPath, "/var/") {
				continue
			}
			mounts = append(mounts, m)
		}
	}

	backoffLimit := l.config.BackoffLimit
	ttl := l.config.TTLSeconds

	return &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      jobName,
			Namespace: l.config.Namespace,
			Labels:    map[string]string{"app": l.config.AppName},
		},
		Spec: kubebatch.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &ttl,
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: map[string]string{"app": l.config.AppName},
				},
				Spec: kubecore.PodSpec{
					RestartPolicy: kubecore.RestartPolicyNever,
					Volumes:       reference.Spec.Volumes,
					Containers: []kubecore.Container{
						{
							Name:    jobName,
							Image:   l.config.Image,
							Command: l.config.Command,
							EnvFrom: envFrom,
							Env: []kubecore.EnvVar{
								{Name: EnvJobID, Value: jobID},
								{Name: EnvJobName, Value: jobName},
								{Name: EnvJobFile, Value: jobFile},
							},
							VolumeMounts: mounts,
						},
					},
				},
			},
		},
	}
}
