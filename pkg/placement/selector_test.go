package placement_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubeplace/placement-controller/pkg/placement"
)

func prodNode(name string) corev1.Node {
	return corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: map[string]string{"env": "prod"}}}
}

func scheduledPod(ns, name, node, app string) corev1.Pod {
	labels := map[string]string{}
	if app != "" {
		labels["app"] = app
	}
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name, Labels: labels},
		Spec:       corev1.PodSpec{NodeName: node},
	}
}

var _ = Describe("ComputeSchedulingDecision", func() {
	It("returns a zero decision when no node is compatible", func() {
		input := placement.SchedulingInput{
			Nodes: []corev1.Node{{ObjectMeta: metav1.ObjectMeta{Name: "n1", Labels: map[string]string{"env": "stage"}}}},
			Pod:   &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "api-1"}},
		}
		decision := placement.ComputeSchedulingDecision(input)
		Expect(decision.Node).To(BeNil())
	})

	It("picks the least-loaded node scoped to the pod's app label", func() {
		nodes := []corev1.Node{prodNode("n1"), prodNode("n2")}
		allPods := []corev1.Pod{
			scheduledPod("default", "web-existing", "n2", "web"),
		}
		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-7", Labels: map[string]string{"app": "web"}},
		}
		decision := placement.ComputeSchedulingDecision(placement.SchedulingInput{Nodes: nodes, AllPods: allPods, Pod: pod})
		Expect(decision.Node).NotTo(BeNil())
		Expect(decision.Node.Name).To(Equal("n1"))
		Expect(decision.Load).To(Equal(map[string]int{"n1": 0, "n2": 1}))
	})

	It("counts every pod on a node when the placed pod has no app label", func() {
		nodes := []corev1.Node{prodNode("n1"), prodNode("n2")}
		allPods := []corev1.Pod{
			scheduledPod("default", "p1", "n1", "db"),
			scheduledPod("default", "p2", "n1", ""),
		}
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "api-1"}}
		decision := placement.ComputeSchedulingDecision(placement.SchedulingInput{Nodes: nodes, AllPods: allPods, Pod: pod})
		Expect(decision.Load).To(Equal(map[string]int{"n1": 2, "n2": 0}))
		Expect(decision.Node.Name).To(Equal("n2"))
	})

	It("ignores unscheduled pods and pods on ineligible nodes when computing load", func() {
		nodes := []corev1.Node{prodNode("n1")}
		allPods := []corev1.Pod{
			scheduledPod("default", "unscheduled", "", "web"),
			scheduledPod("default", "elsewhere", "n-other", "web"),
		}
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-7", Labels: map[string]string{"app": "web"}}}
		decision := placement.ComputeSchedulingDecision(placement.SchedulingInput{Nodes: nodes, AllPods: allPods, Pod: pod})
		Expect(decision.Load).To(Equal(map[string]int{"n1": 0}))
	})

	It("is deterministic across repeated calls on identical input, up to tie-break", func() {
		nodes := []corev1.Node{prodNode("n1"), prodNode("n2"), prodNode("n3")}
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "p", Labels: map[string]string{"app": "web"}}}
		input := placement.SchedulingInput{Nodes: nodes, Pod: pod}

		first := placement.ComputeSchedulingDecision(input)
		for i := 0; i < 10; i++ {
			again := placement.ComputeSchedulingDecision(input)
			Expect(again.Node.Name).To(Equal(first.Node.Name))
		}
	})

	It("every returned node is compatible with the pod", func() {
		nodes := []corev1.Node{
			prodNode("n1"),
			{ObjectMeta: metav1.ObjectMeta{Name: "n2", Labels: map[string]string{"env": "stage"}}},
		}
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "p"}}
		decision := placement.ComputeSchedulingDecision(placement.SchedulingInput{Nodes: nodes, Pod: pod})
		Expect(decision.Node.Name).To(Equal("n1"))
		Expect(placement.Compatible(decision.Node, pod)).To(BeTrue())
	})
})
