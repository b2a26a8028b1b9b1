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

// Package controller implements the watch loop (C7): a single-threaded,
// cooperative event consumer that dispatches each pod event through the
// rejection registry, node selector, and binder, and survives stream
// restarts and duplicate events.
package controller

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/kubeplace/placement-controller/pkg/binder"
	"github.com/kubeplace/placement-controller/pkg/clusterclient"
	"github.com/kubeplace/placement-controller/pkg/metrics"
	"github.com/kubeplace/placement-controller/pkg/placement"
	"github.com/kubeplace/placement-controller/pkg/rejection"
	"github.com/kubeplace/placement-controller/pkg/trace"
)

// Options configures the watch loop.
type Options struct {
	// SchedulerName is this controller's identity: pods whose
	// spec.schedulerName equals this value are owned.
	SchedulerName string
	// WatchTimeoutSeconds bounds each watch session (spec §4.1 / §4.7).
	WatchTimeoutSeconds int64
}

// Controller is the watch loop (C7).
type Controller struct {
	client   clusterclient.Interface
	registry *rejection.Registry
	tracer   *trace.Recorder
	binder   *binder.Binder
	clock    clock.Clock
	logger   logr.Logger
	opts     Options
}

func New(client clusterclient.Interface, registry *rejection.Registry, tracer *trace.Recorder, b *binder.Binder, clk clock.Clock, logger logr.Logger, opts Options) *Controller {
	return &Controller{
		client:   client,
		registry: registry,
		tracer:   tracer,
		binder:   b,
		clock:    clk,
		logger:   logger,
		opts:     opts,
	}
}

// Run drives the watch loop until ctx is cancelled (by an INT/TERM signal
// handled upstream in cmd/scheduler). Every stream restart -- whether
// from a clean server-side timeout or a transient error -- is
// unconditional: progress under adversity is favored over strict error
// surfacing (spec §4.7, §7).
func (c *Controller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		watchID := uuid.New().String()
		events, err := c.client.WatchPods(ctx, c.opts.WatchTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error(err, "failed to start watch, restarting", "watch-id", watchID)
			continue
		}
		c.logger.V(1).Info("watch stream started", "watch-id", watchID)

		c.drain(ctx, events)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// drain consumes one watch session to completion or cancellation.
func (c *Controller) drain(ctx context.Context, events <-chan clusterclient.PodEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.handleEvent(ctx, ev)
		}
	}
}

// handleEvent implements the per-event state machine from spec §4.7.
func (c *Controller) handleEvent(ctx context.Context, ev clusterclient.PodEvent) {
	if ev.Kind == clusterclient.Deleted || ev.Kind == clusterclient.Error {
		return
	}
	pod := ev.Pod
	if pod == nil {
		return
	}

	if pod.Spec.NodeName != "" {
		if pod.Status.Phase == corev1.PodRunning {
			c.tracer.RecordStarted(pod)
		}
		return
	}

	if pod.Spec.SchedulerName != c.opts.SchedulerName {
		return
	}

	if pod.Status.Phase != corev1.PodPending {
		if pod.Status.Phase == corev1.PodRunning {
			c.tracer.RecordStarted(pod)
		}
		return
	}

	if c.registry.IsRecentlyRejected(pod) {
		return
	}

	c.tracer.Record(pod, trace.StageAdded, pod.CreationTimestamp.Time)
	c.tracer.Record(pod, trace.StageEligible, c.clock.Now().UTC())

	decision, err := c.choose(ctx, pod)
	if err != nil {
		c.logger.Error(err, "failed to gather cluster state for placement", "pod", klog.KRef(pod.Namespace, pod.Name))
		return
	}

	if decision.Node == nil {
		metrics.PodsRejectedTotal.Inc()
		if err := c.registry.MarkRejected(ctx, pod); err != nil {
			c.logger.Error(err, "failed to mark rejection, pod will be re-evaluated next event", "pod", klog.KRef(pod.Namespace, pod.Name))
		}
		return
	}

	c.logger.V(1).Info("chose node", "pod", klog.KRef(pod.Namespace, pod.Name), "node", decision.Node.Name, "load", decision.Load)

	if c.binder.Bind(ctx, pod, decision.Node.Name) {
		metrics.PodsBoundTotal.Inc()
		if d, ok := c.tracerLatency(pod); ok {
			metrics.BindLatencySeconds.Observe(d.Seconds())
		}
	}
}

func (c *Controller) tracerLatency(pod *corev1.Pod) (time.Duration, bool) {
	rec, ok := c.tracer.Get(trace.Key(pod))
	if !ok {
		return 0, false
	}
	return rec.Latency()
}

// choose gathers fresh cluster state (spec §9: "every event issues
// list_nodes and list_pods_for_all_namespaces... a rewrite must not
// change externally observable placement decisions") and runs the pure
// node filter + scorer over it.
func (c *Controller) choose(ctx context.Context, pod *corev1.Pod) (placement.SchedulingDecision, error) {
	start := c.clock.Now()
	defer func() {
		metrics.SchedulingDurationSeconds.Observe(c.clock.Now().Sub(start).Seconds())
	}()

	var errs error
	nodes, err := c.client.ListNodes(ctx)
	errs = multierr.Append(errs, err)
	pods, err := c.client.ListPodsAllNamespaces(ctx)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return placement.SchedulingDecision{}, errs
	}
	return placement.ComputeSchedulingDecision(placement.SchedulingInput{
		Nodes:   nodes,
		AllPods: pods,
		Pod:     pod,
	}), nil
}
