/*
Copyright The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package clusterclientfake is a hand-written fake of clusterclient.Interface
// for unit tests, following the behavior-func-plus-call-counters shape the
// rest of this codebase's fakes use rather than a generated mock.
package clusterclientfake

import (
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/kubeplace/placement-controller/pkg/clusterclient"
)

// Client is a fake clusterclient.Interface. Each operation has a configurable
// *Func field; when nil a sensible default is used. Calls are counted and
// their arguments captured for assertions.
type Client struct {
	mu sync.Mutex

	Nodes []corev1.Node
	Pods  []corev1.Pod

	ListNodesFunc func(ctx context.Context) ([]corev1.Node, error)
	ListPodsFunc  func(ctx context.Context) ([]corev1.Pod, error)
	BindFunc      func(ctx context.Context, namespace string, binding *corev1.Binding) error
	PatchPodFunc  func(ctx context.Context, namespace, name string, mergePatch []byte) error

	// WatchEvents is sent, in order, over the channel returned by the next
	// WatchPods call, then the channel is closed (simulating the server
	// timeout closing the stream). Each call to WatchPods consumes one
	// batch from WatchSessions (if set) or falls back to WatchEvents.
	WatchEvents   []clusterclient.PodEvent
	WatchSessions [][]clusterclient.PodEvent
	WatchErr      error

	ListNodesCalls int
	ListPodsCalls  int
	BindCalls      []BindCall
	PatchPodCalls  []PatchPodCall
	WatchCalls     int
}

type BindCall struct {
	Namespace string
	Binding   *corev1.Binding
}

type PatchPodCall struct {
	Namespace, Name string
	MergePatch      []byte
}

var _ clusterclient.Interface = (*Client)(nil)

func New() *Client {
	return &Client{}
}

func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	c.mu.Lock()
	c.ListNodesCalls++
	fn := c.ListNodesFunc
	nodes := c.Nodes
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nodes, nil
}

func (c *Client) ListPodsAllNamespaces(ctx context.Context) ([]corev1.Pod, error) {
	c.mu.Lock()
	c.ListPodsCalls++
	fn := c.ListPodsFunc
	pods := c.Pods
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return pods, nil
}

func (c *Client) WatchPods(ctx context.Context, _ int64) (<-chan clusterclient.PodEvent, error) {
	c.mu.Lock()
	c.WatchCalls++
	if c.WatchErr != nil {
		err := c.WatchErr
		c.mu.Unlock()
		return nil, err
	}
	var batch []clusterclient.PodEvent
	if len(c.WatchSessions) > 0 {
		batch = c.WatchSessions[0]
		c.WatchSessions = c.WatchSessions[1:]
	} else {
		batch = c.WatchEvents
	}
	c.mu.Unlock()

	out := make(chan clusterclient.PodEvent, len(batch))
	for _, ev := range batch {
		out <- ev
	}
	close(out)
	return out, nil
}

func (c *Client) PatchPod(ctx context.Context, namespace, name string, mergePatch []byte) error {
	c.mu.Lock()
	c.PatchPodCalls = append(c.PatchPodCalls, PatchPodCall{Namespace: namespace, Name: name, MergePatch: mergePatch})
	fn := c.PatchPodFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, namespace, name, mergePatch)
	}
	return nil
}

func (c *Client) Bind(ctx context.Context, namespace string, binding *corev1.Binding) error {
	c.mu.Lock()
	c.BindCalls = append(c.BindCalls, BindCall{Namespace: namespace, Binding: binding})
	fn := c.BindFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, namespace, binding)
	}
	return nil
}

// BindCallCount returns the number of times Bind was invoked (thread-safe).
func (c *Client) BindCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.BindCalls)
}

// PatchPodCallCount returns the number of times PatchPod was invoked.
func (c *Client) PatchPodCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.PatchPodCalls)
}
