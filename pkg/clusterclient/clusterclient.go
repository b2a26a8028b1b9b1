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

// Package clusterclient is a thin facade over the orchestrator's
// list/watch/patch/bind RPCs. It exposes exactly the capability surface the
// placement controller needs, so the rest of the controller can be driven
// from hand-written fakes instead of a live API server.
package clusterclient

import (
	"context"

	corev1 "k8s.io/api/core/v1"
)

// EventKind identifies the kind of change a watch event carries.
type EventKind string

const (
	Added    EventKind = "ADDED"
	Modified EventKind = "MODIFIED"
	Deleted  EventKind = "DELETED"
	Error    EventKind = "ERROR"
)

// PodEvent is a single item from the watch stream.
type PodEvent struct {
	Kind EventKind
	Pod  *corev1.Pod
}

// Interface is the capability surface C1 exposes to the rest of the
// controller: list nodes, list pods cluster-wide, watch pods, patch pod
// metadata, and bind a pod to a node. Every method here is a potential
// suspension point (see spec §5) and may return a Transient or Terminal
// error (see Classify).
type Interface interface {
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	ListPodsAllNamespaces(ctx context.Context) ([]corev1.Pod, error)

	// WatchPods returns a channel of PodEvents for a single, finite watch
	// session. The channel closes when the server-side timeout elapses or
	// the context is cancelled; a closed channel is not an error, it is
	// the expected end of one watch session and callers are expected to
	// re-invoke WatchPods to start the next one.
	WatchPods(ctx context.Context, timeoutSeconds int64) (<-chan PodEvent, error)

	// PatchPod applies a JSON merge patch to a pod's metadata.
	PatchPod(ctx context.Context, namespace, name string, mergePatch []byte) error

	// Bind creates the Binding resource that authoritatively assigns pod
	// to node.
	Bind(ctx context.Context, namespace string, binding *corev1.Binding) error
}
