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

// Package trace records per-pod lifecycle timestamps (added, eligible,
// scheduled, bound, started) and derives bind latency. It holds no
// durable state -- losing it on restart is tolerable, see spec §3.
package trace

import (
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

// Stage is one point in a pod's placement lifecycle.
type Stage string

const (
	StageAdded     Stage = "added"
	StageEligible  Stage = "eligible"
	StageScheduled Stage = "scheduled"
	StageBound     Stage = "bound"
	StageStarted   Stage = "started"
)

// Record holds the lifecycle timestamps for a single pod. A zero Time
// means the stage has not been recorded yet.
type Record struct {
	Added        time.Time
	Eligible     time.Time
	Scheduled    time.Time
	Bound        time.Time
	Started      time.Time
	BindAttempts int
}

// Latency returns Bound - Added, and whether both are set.
func (r Record) Latency() (time.Duration, bool) {
	if r.Added.IsZero() || r.Bound.IsZero() {
		return 0, false
	}
	return r.Bound.Sub(r.Added), true
}

// Recorder is the trace recorder (C6). It is an injected collaborator, not
// process-wide state: callers construct one and pass it into the watch
// loop, which keeps tests isolated (see spec §9, "Global mutable state for
// traces").
type Recorder struct {
	mu      sync.Mutex
	records map[string]*Record
	logger  logr.Logger
	clock   clock.Clock
}

func NewRecorder(logger logr.Logger, clk clock.Clock) *Recorder {
	return &Recorder{
		records: make(map[string]*Record),
		logger:  logger,
		clock:   clk,
	}
}

// Key returns the namespace/name identity a pod is tracked under.
func Key(pod *corev1.Pod) string {
	return pod.Namespace + "/" + pod.Name
}

func (r *Recorder) recordLocked(key string) *Record {
	rec, ok := r.records[key]
	if !ok {
		rec = &Record{}
		r.records[key] = rec
	}
	return rec
}

// Record writes a lifecycle stage for pod at ts. First write wins: a stage
// already set is left untouched. StageStarted is handled separately by
// RecordStarted, since it derives from container statuses rather than a
// caller-supplied timestamp.
func (r *Recorder) Record(pod *corev1.Pod, stage Stage, ts time.Time) {
	key := Key(pod)

	r.mu.Lock()
	rec := r.recordLocked(key)
	var wrote bool
	switch stage {
	case StageAdded:
		if rec.Added.IsZero() {
			rec.Added = ts
			wrote = true
		}
	case StageEligible:
		if rec.Eligible.IsZero() {
			rec.Eligible = ts
			wrote = true
		}
	case StageScheduled:
		if rec.Scheduled.IsZero() {
			rec.Scheduled = ts
			wrote = true
		}
	case StageBound:
		if rec.Bound.IsZero() {
			rec.Bound = ts
			wrote = true
		}
	}
	latency, haveLatency := rec.Latency()
	r.mu.Unlock()

	if !wrote {
		return
	}
	r.logger.Info("stage", "stage", string(stage), "pod", klog.KRef(pod.Namespace, pod.Name), "ts", ts.Unix())
	if stage == StageBound && haveLatency {
		r.logger.Info("latency", "pod", klog.KRef(pod.Namespace, pod.Name), "added_to_bound", latency.Seconds())
	}
}

// RecordStarted sets Started to the maximum started_at across the pod's
// currently-running containers. It is a no-op if no container is running,
// or if Started was already recorded (first write wins, never overwritten
// on later observations -- see spec §3).
func (r *Recorder) RecordStarted(pod *corev1.Pod) {
	var max time.Time
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Running == nil {
			continue
		}
		t := cs.State.Running.StartedAt.Time
		if t.After(max) {
			max = t
		}
	}
	if max.IsZero() {
		return
	}

	key := Key(pod)
	r.mu.Lock()
	rec := r.recordLocked(key)
	wrote := rec.Started.IsZero()
	if wrote {
		rec.Started = max
	}
	r.mu.Unlock()

	if wrote {
		r.logger.Info("stage", "stage", string(StageStarted), "pod", klog.KRef(pod.Namespace, pod.Name), "ts", max.Unix())
	}
}

// IncrementBindAttempts increments and returns the bind attempt counter for
// pod. Called once per bind attempt, before the RPC is issued.
func (r *Recorder) IncrementBindAttempts(pod *corev1.Pod) int {
	key := Key(pod)
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recordLocked(key)
	rec.BindAttempts++
	return rec.BindAttempts
}

// Get returns a copy of the record for key, if any.
func (r *Recorder) Get(key string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every tracked record, keyed by namespace/name.
func (r *Recorder) Snapshot() map[string]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Record, len(r.records))
	for k, v := range r.records {
		out[k] = *v
	}
	return out
}

// LatencySummary computes p50/p95/mean bind latency (added -> bound) over
// every record that has both timestamps set, plus the sample count. It is
// used for the optional shutdown summary (SPEC_FULL, "SUPPLEMENTED
// FEATURES"); it performs no RPCs and reads only the in-memory snapshot.
func (r *Recorder) LatencySummary() (p50, p95, mean time.Duration, n int) {
	snap := r.Snapshot()
	samples := make([]time.Duration, 0, len(snap))
	var total time.Duration
	for _, rec := range snap {
		if d, ok := rec.Latency(); ok {
			samples = append(samples, d)
			total += d
		}
	}
	n = len(samples)
	if n == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	mean = total / time.Duration(n)
	p50 = samples[percentileIndex(n, 0.50)]
	p95 = samples[percentileIndex(n, 0.95)]
	return p50, p95, mean, n
}

func percentileIndex(n int, p float64) int {
	idx := int(p * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
