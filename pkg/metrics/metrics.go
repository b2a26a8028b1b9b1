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

// Package metrics is a small, optional Prometheus surface for the
// controller. Nothing in pkg/placement, pkg/rejection, or pkg/trace
// imports this package: the collectors are incremented from pkg/controller
// and pkg/binder and registered by cmd/scheduler, and they are never a
// dependency of the placement decision itself (spec §6: "No
// machine-readable metrics endpoint is in scope for the core").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PodsBoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "placement_controller",
		Name:      "pods_bound_total",
		Help:      "Total number of pods successfully bound by this controller.",
	})

	PodsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "placement_controller",
		Name:      "pods_rejected_total",
		Help:      "Total number of placement attempts that found no compatible node and tried to mark the pod rejected.",
	})

	BindAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "placement_controller",
		Name:      "bind_attempts_total",
		Help:      "Total number of bind RPC attempts issued, including retries.",
	})

	BindLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placement_controller",
		Name:      "bind_latency_seconds",
		Help:      "Observed added-to-bound latency per successfully bound pod.",
		Buckets:   prometheus.DefBuckets,
	})

	SchedulingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placement_controller",
		Name:      "scheduling_duration_seconds",
		Help:      "Wall-clock time spent choosing a node for one pod (list + filter + score).",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register adds every collector above to reg. Called once, from
// cmd/scheduler, before the metrics HTTP server starts.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		PodsBoundTotal,
		PodsRejectedTotal,
		BindAttemptsTotal,
		BindLatencySeconds,
		SchedulingDurationSeconds,
	)
}
