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

// Package rejection implements the rejection registry (C2): it persists a
// "recently rejected" mark as a pod annotation rather than in-process
// state, so cool-down survives controller restarts and the controller
// remains a pure function of observable cluster state (spec §9).
package rejection

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/kubeplace/placement-controller/pkg/clusterclient"
)

// AnnotationKey is the pod annotation holding the rejection mark's
// timestamp.
const AnnotationKey = "scheduler-rejected"

// DefaultTimeout is the default cool-down window (spec §3).
const DefaultTimeout = 300 * time.Second

// Registry is the rejection registry (C2).
type Registry struct {
	client  clusterclient.Interface
	timeout time.Duration
	clock   clock.Clock
	logger  logr.Logger
}

func NewRegistry(client clusterclient.Interface, timeout time.Duration, clk clock.Clock, logger logr.Logger) *Registry {
	return &Registry{client: client, timeout: timeout, clock: clk, logger: logger}
}

// IsRecentlyRejected reports whether pod carries a rejection mark whose
// stored instant is within the last timeout of now. A missing or
// unparsable annotation is treated as "not rejected" -- a malformed mark
// should never permanently block placement.
//
// The boundary is exclusive: a mark exactly timeout seconds old no longer
// suppresses placement (age < timeout, not <=). This is an
// implementation-defined choice per spec §8; it is applied consistently
// everywhere the mark is read.
func (r *Registry) IsRecentlyRejected(pod *corev1.Pod) bool {
	v, ok := pod.Annotations[AnnotationKey]
	if !ok {
		return false
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return false
	}
	age := r.clock.Now().UTC().Sub(ts.UTC())
	return age >= 0 && age < r.timeout
}

// MarkRejected stamps the pod with the current UTC instant. On failure the
// watch loop logs and continues: the next observation of this pod will
// either re-mark it or, if it has since become placeable, schedule it.
func (r *Registry) MarkRejected(ctx context.Context, pod *corev1.Pod) error {
	now := r.clock.Now().UTC().Format(time.RFC3339)
	patch, err := clusterclient.BuildAnnotationPatch(map[string]string{AnnotationKey: now})
	if err != nil {
		return fmt.Errorf("building rejection patch for %s/%s: %w", pod.Namespace, pod.Name, err)
	}
	if err := r.client.PatchPod(ctx, pod.Namespace, pod.Name, patch); err != nil {
		r.logger.Error(err, "failed to mark pod rejected", "pod", klog.KRef(pod.Namespace, pod.Name))
		return err
	}
	r.logger.V(1).Info("marked pod rejected", "pod", klog.KRef(pod.Namespace, pod.Name), "ts", now)
	return nil
}
