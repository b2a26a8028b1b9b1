package clusterclient

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// Client is the Interface implementation backed by a real client-go
// clientset.
type Client struct {
	clientset kubernetes.Interface
}

// New wraps an existing clientset.
func New(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

var _ Interface = (*Client)(nil)

func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return list.Items, nil
}

func (c *Client) ListPodsAllNamespaces(ctx context.Context) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	return list.Items, nil
}

func (c *Client) WatchPods(ctx context.Context, timeoutSeconds int64) (<-chan PodEvent, error) {
	w, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
		TimeoutSeconds: &timeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("watching pods: %w", err)
	}

	out := make(chan PodEvent)
	go func() {
		defer close(out)
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.ResultChan():
				if !ok {
					return
				}
				pe, ok := toPodEvent(ev)
				if !ok {
					continue
				}
				select {
				case out <- pe:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func toPodEvent(ev watch.Event) (PodEvent, bool) {
	switch ev.Type {
	case watch.Added:
		pod, ok := ev.Object.(*corev1.Pod)
		if !ok {
			return PodEvent{}, false
		}
		return PodEvent{Kind: Added, Pod: pod}, true
	case watch.Modified:
		pod, ok := ev.Object.(*corev1.Pod)
		if !ok {
			return PodEvent{}, false
		}
		return PodEvent{Kind: Modified, Pod: pod}, true
	case watch.Deleted:
		pod, ok := ev.Object.(*corev1.Pod)
		if !ok {
			return PodEvent{}, false
		}
		return PodEvent{Kind: Deleted, Pod: pod}, true
	case watch.Error:
		return PodEvent{Kind: Error}, true
	default:
		return PodEvent{}, false
	}
}

func (c *Client) PatchPod(ctx context.Context, namespace, name string, mergePatch []byte) error {
	_, err := c.clientset.CoreV1().Pods(namespace).Patch(ctx, name, types.MergePatchType, mergePatch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patching pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

func (c *Client) Bind(ctx context.Context, namespace string, binding *corev1.Binding) error {
	err := c.clientset.CoreV1().Pods(namespace).Bind(ctx, binding, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("binding pod %s/%s to node %s: %w", namespace, binding.Name, binding.Target.Name, err)
	}
	return nil
}

// BuildAnnotationPatch builds the JSON merge patch body for a single
// annotation write, used by pkg/rejection to mark a pod rejected.
func BuildAnnotationPatch(annotations map[string]string) ([]byte, error) {
	patch := map[string]any{
		"metadata": map[string]any{
			"annotations": annotations,
		},
	}
	return json.Marshal(patch)
}
