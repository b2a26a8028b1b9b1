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

// Package placement implements the node filter (C3) and node scorer &
// selector (C4): a pure, side-effect-free pipeline from (pod, node set) to
// a chosen node.
package placement

import (
	corev1 "k8s.io/api/core/v1"
)

// prodEnvLabel is the hard-coded environment gate (spec §4.3): more
// general label expressions are an explicit non-goal of this controller.
const prodEnvLabel = "prod"

// Compatible is the node filter predicate (C3): true iff node is
// admissible for pod. It checks the environment label gate and then taint
// tolerance; it never considers resource capacity. The function is pure
// and order of iteration over node.Spec.Taints is unspecified by design.
func Compatible(node *corev1.Node, pod *corev1.Pod) bool {
	if node.Labels["env"] != prodEnvLabel {
		return false
	}
	for _, taint := range node.Spec.Taints {
		if !tolerated(pod.Spec.Tolerations, taint) {
			return false
		}
	}
	return true
}

// tolerated reports whether any toleration in tolerations matches taint,
// per spec §4.3:
//   - key and effect must match
//   - Exists (or default-equivalent) tolerates any taint value
//   - Equal (the default when Operator is omitted) requires equal values,
//     including the case where both are absent
func tolerated(tolerations []corev1.Toleration, taint corev1.Taint) bool {
	for _, tol := range tolerations {
		if tol.Key != taint.Key {
			continue
		}
		if string(tol.Effect) != string(taint.Effect) {
			continue
		}
		switch tol.Operator {
		case corev1.TolerationOpExists:
			return true
		case corev1.TolerationOpEqual, "":
			if tol.Value == taint.Value {
				return true
			}
		}
	}
	return false
}
