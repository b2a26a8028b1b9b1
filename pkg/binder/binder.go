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

// Package binder implements the binder (C5): it issues the authoritative
// bind RPC with bounded retry and records bind latency.
package binder

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	"github.com/kubeplace/placement-controller/pkg/clusterclient"
	"github.com/kubeplace/placement-controller/pkg/metrics"
	"github.com/kubeplace/placement-controller/pkg/trace"
)

// DefaultAttempts and DefaultDelay are the bind retry defaults from spec
// §4.5.
const (
	DefaultAttempts = uint(3)
	DefaultDelay    = 2 * time.Second
)

// Binder is the binder (C5).
type Binder struct {
	client   clusterclient.Interface
	attempts uint
	delay    time.Duration
	tracer   *trace.Recorder
	logger   logr.Logger
}

func New(client clusterclient.Interface, attempts uint, delay time.Duration, tracer *trace.Recorder, logger logr.Logger) *Binder {
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	return &Binder{client: client, attempts: attempts, delay: delay, tracer: tracer, logger: logger}
}

// Bind issues the bind RPC for pod -> nodeName, making at most b.attempts
// attempts in total with a fixed b.delay between them. It reports true on
// success.
//
// A "scheduled" trace timestamp is written immediately before the first
// attempt and a "bound" timestamp immediately after success (spec §4.5).
// Every attempt -- including the first -- increments bind_attempts before
// the call is made. On exhausting all attempts, no rejection mark is
// written here: that is the watch loop's job to skip, since a bind
// failure is not "no compatible node" (spec §9, open question).
func (b *Binder) Bind(ctx context.Context, pod *corev1.Pod, nodeName string) bool {
	b.tracer.Record(pod, trace.StageScheduled, time.Now().UTC())

	binding := &corev1.Binding{
		ObjectMeta: metav1.ObjectMeta{Name: pod.Name},
		Target:     corev1.ObjectReference{Kind: "Node", Name: nodeName},
	}

	err := retry.Do(
		func() error {
			b.tracer.IncrementBindAttempts(pod)
			metrics.BindAttemptsTotal.Inc()
			return b.client.Bind(ctx, pod.Namespace, binding)
		},
		retry.Attempts(b.attempts),
		retry.Delay(b.delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		b.logger.Info("bind failed after retries, will re-attempt on next observation",
			"pod", klog.KRef(pod.Namespace, pod.Name), "node", nodeName, "error", err.Error())
		return false
	}

	b.tracer.Record(pod, trace.StageBound, time.Now().UTC())
	return true
}
