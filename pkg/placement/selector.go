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

package placement

import (
	"github.com/mitchellh/hashstructure/v2"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
)

// SchedulingInput is all the data needed to make a placement decision for
// one pod. Separating this from the I/O that gathers it (cluster listing,
// done by the caller) is what lets ComputeSchedulingDecision run as a pure
// function with no mocks: construct a SchedulingInput from fixtures and
// assert on the SchedulingDecision it produces.
type SchedulingInput struct {
	// Nodes is the full node listing; ComputeSchedulingDecision filters it.
	Nodes []corev1.Node
	// AllPods is the cluster-wide pod listing used to compute load.
	AllPods []corev1.Pod
	// Pod is the pod being placed.
	Pod *corev1.Pod
}

// SchedulingDecision is the outcome of ComputeSchedulingDecision.
type SchedulingDecision struct {
	// Node is the chosen node, or nil if no compatible node exists.
	Node *corev1.Node
	// Load is the per-node count ComputeSchedulingDecision built while
	// scoring, exposed for logging/tests.
	Load map[string]int
}

// ComputeSchedulingDecision is the node scorer & selector (C4). It filters
// input.Nodes to those Compatible with input.Pod, scores each by
// affinity-scoped pod count, and returns the node with minimum count.
//
// Tie-break: when two or more compatible nodes have equal minimum load,
// the node whose name hashes lowest (via hashstructure, a stable
// structural hash independent of map iteration order) is chosen. This
// satisfies spec §4.4's "implementation-defined but deterministic"
// requirement without depending on Go's randomized map iteration, and
// without callers relying on which node wins a tie.
func ComputeSchedulingDecision(input SchedulingInput) SchedulingDecision {
	compatible := lo.Filter(input.Nodes, func(n corev1.Node, _ int) bool {
		return Compatible(&n, input.Pod)
	})
	if len(compatible) == 0 {
		return SchedulingDecision{}
	}

	eligible := make(map[string]struct{}, len(compatible))
	load := make(map[string]int, len(compatible))
	for _, n := range compatible {
		eligible[n.Name] = struct{}{}
		load[n.Name] = 0
	}

	appName, hasApp := input.Pod.Labels["app"]
	for _, p := range input.AllPods {
		if p.Spec.NodeName == "" {
			continue
		}
		if _, ok := eligible[p.Spec.NodeName]; !ok {
			continue
		}
		if hasApp {
			if p.Labels["app"] == appName {
				load[p.Spec.NodeName]++
			}
			continue
		}
		load[p.Spec.NodeName]++
	}

	best := selectMinLoad(compatible, load)
	return SchedulingDecision{Node: best, Load: load}
}

func selectMinLoad(nodes []corev1.Node, load map[string]int) *corev1.Node {
	var (
		best     *corev1.Node
		bestLoad = -1
		bestHash uint64
	)
	for i := range nodes {
		n := &nodes[i]
		l := load[n.Name]
		h := nameHash(n.Name)
		switch {
		case best == nil, l < bestLoad, l == bestLoad && h < bestHash:
			best, bestLoad, bestHash = n, l, h
		}
	}
	return best
}

func nameHash(name string) uint64 {
	h, err := hashstructure.Hash(name, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure.Hash only errors on unsupported types; a string
		// never triggers that path, so this is unreachable in practice.
		return 0
	}
	return h
}
