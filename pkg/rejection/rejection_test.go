package rejection_test

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kubeplace/placement-controller/pkg/clusterclient/clusterclientfake"
	"github.com/kubeplace/placement-controller/pkg/rejection"
)

var _ = Describe("Registry", func() {
	var (
		fake *clusterclientfake.Client
		clk  *clocktesting.FakeClock
		reg  *rejection.Registry
		pod  *corev1.Pod
	)

	BeforeEach(func() {
		fake = clusterclientfake.New()
		clk = clocktesting.NewFakeClock(time.Now())
		reg = rejection.NewRegistry(fake, 300*time.Second, clk, logr.Discard())
		pod = &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "api-1"}}
	})

	It("treats a pod with no rejection annotation as not rejected", func() {
		Expect(reg.IsRecentlyRejected(pod)).To(BeFalse())
	})

	It("treats an unparsable annotation as not rejected", func() {
		pod.Annotations = map[string]string{rejection.AnnotationKey: "not-a-timestamp"}
		Expect(reg.IsRecentlyRejected(pod)).To(BeFalse())
	})

	It("suppresses placement within the cool-down window", func() {
		pod.Annotations = map[string]string{
			rejection.AnnotationKey: clk.Now().UTC().Format(time.RFC3339),
		}
		clk.Step(10 * time.Second)
		Expect(reg.IsRecentlyRejected(pod)).To(BeTrue())
	})

	It("stops suppressing once the cool-down window elapses", func() {
		pod.Annotations = map[string]string{
			rejection.AnnotationKey: clk.Now().UTC().Format(time.RFC3339),
		}
		clk.Step(310 * time.Second)
		Expect(reg.IsRecentlyRejected(pod)).To(BeFalse())
	})

	It("treats the boundary instant as expired, not rejected", func() {
		clk.SetTime(clk.Now().Truncate(time.Second))
		pod.Annotations = map[string]string{
			rejection.AnnotationKey: clk.Now().UTC().Format(time.RFC3339),
		}
		clk.Step(300 * time.Second)
		Expect(reg.IsRecentlyRejected(pod)).To(BeFalse())
	})

	It("writes a rejection patch stamped with the current UTC instant", func() {
		err := reg.MarkRejected(context.Background(), pod)
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.PatchPodCallCount()).To(Equal(1))
		call := fake.PatchPodCalls[0]
		Expect(call.Namespace).To(Equal("default"))
		Expect(call.Name).To(Equal("api-1"))
		Expect(string(call.MergePatch)).To(ContainSubstring(rejection.AnnotationKey))
	})

	It("surfaces a failing patch and performs no local retry", func() {
		fake.PatchPodFunc = func(ctx context.Context, namespace, name string, mergePatch []byte) error {
			return context.DeadlineExceeded
		}
		err := reg.MarkRejected(context.Background(), pod)
		Expect(err).To(HaveOccurred())
		Expect(fake.PatchPodCallCount()).To(Equal(1))
	})
})
