package ports_test

import (
	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/ports"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Link", func() {
	var src *ports.Output
	var dst *ports.Input

	BeforeEach(func() {
		src = ports.NewOutput("r1", "out", array.F64)
		src.Array.Resize(2)
		src.Array.SetF64At(0, 1)
		src.Array.SetF64At(1, 2)

		dst = ports.NewInput("r2", "in", array.F64, true)
		dst.Array.Resize(2)
	})

	It("should forward the producer's current output with zero delay", func() {
		l, err := ports.NewLink("identity1to1", "", src, 0, ports.Identity1to1{})
		Expect(err).NotTo(HaveOccurred())
		Expect(dst.AddLink(l)).To(Succeed())

		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(1.0))
		Expect(dst.Array.F64At(1)).To(Equal(2.0))

		src.Array.SetF64At(0, 99)
		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(99.0))
	})

	It("should delay delivery by exactly N iterations", func() {
		l, err := ports.NewLink("identity1to1", "", src, 2, ports.Identity1to1{})
		Expect(err).NotTo(HaveOccurred())
		Expect(dst.AddLink(l)).To(Succeed())
		l.ResizeDelayQueue()

		// iteration 1: head is still zero.
		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(0.0))
		src.Array.SetF64At(0, 10)
		src.Array.SetF64At(1, 10)
		l.ShiftBufferedData()

		// iteration 2: head is still zero (the first shift enqueued
		// iteration 1's output, which is now at the back of the queue).
		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(0.0))
		src.Array.SetF64At(0, 100)
		src.Array.SetF64At(1, 100)
		l.ShiftBufferedData()

		// iteration 3: head is iteration 1's output.
		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(10.0))
		l.ShiftBufferedData()

		// iteration 4: head is iteration 2's output.
		dst.PrepareInputs()
		Expect(dst.Array.F64At(0)).To(Equal(100.0))
	})

	It("should reject a second link on an identity input", func() {
		other := ports.NewOutput("r3", "out", array.F64)
		other.Array.Resize(2)

		l1, _ := ports.NewLink("identity1to1", "", src, 0, ports.Identity1to1{})
		Expect(dst.AddLink(l1)).To(Succeed())

		l2, _ := ports.NewLink("identity1to1", "", other, 0, ports.Identity1to1{})
		err := dst.AddLink(l2)
		Expect(err).To(HaveOccurred())
	})

	It("should concatenate fan-in contributions in attachment order", func() {
		wide := ports.NewInput("r2", "wide", array.F64, true)
		wide.Array.Resize(4)

		other := ports.NewOutput("r3", "out", array.F64)
		other.Array.Resize(2)
		other.Array.SetF64At(0, 3)
		other.Array.SetF64At(1, 4)

		l1, _ := ports.NewLink("concat", "", src, 0, ports.Concat{})
		Expect(wide.AddLink(l1)).To(Succeed())
		l2, _ := ports.NewLink("concat", "", other, 0, ports.Concat{})
		Expect(wide.AddLink(l2)).To(Succeed())

		wide.PrepareInputs()
		Expect(wide.Array.F64At(0)).To(Equal(1.0))
		Expect(wide.Array.F64At(1)).To(Equal(2.0))
		Expect(wide.Array.F64At(2)).To(Equal(3.0))
		Expect(wide.Array.F64At(3)).To(Equal(4.0))
	})

	It("should report HasOutgoingLinks on its source output", func() {
		Expect(src.HasOutgoingLinks()).To(BeFalse())
		l, _ := ports.NewLink("identity1to1", "", src, 0, ports.Identity1to1{})
		Expect(dst.AddLink(l)).To(Succeed())
		Expect(src.HasOutgoingLinks()).To(BeTrue())

		Expect(dst.RemoveLink(l)).To(Succeed())
		Expect(src.HasOutgoingLinks()).To(BeFalse())
	})

	It("should refuse to remove a link while the owning region is initialized", func() {
		l, _ := ports.NewLink("identity1to1", "", src, 0, ports.Identity1to1{})
		Expect(dst.AddLink(l)).To(Succeed())
		dst.RegionInitialized = func() bool { return true }

		err := dst.RemoveLink(l)
		Expect(err).To(HaveOccurred())
	})

	It("should exclude the newest slot from QueuedSnapshots", func() {
		l, _ := ports.NewLink("identity1to1", "", src, 2, ports.Identity1to1{})
		l.ResizeDelayQueue()

		src.Array.SetF64At(0, 1)
		l.ShiftBufferedData()
		src.Array.SetF64At(0, 2)
		l.ShiftBufferedData()

		snaps := l.QueuedSnapshots()
		Expect(snaps).To(HaveLen(1))
	})

	It("should restore a delay-2 queue so the oldest buffered value survives the post-load shift", func() {
		l, err := ports.NewLink("identity1to1", "", src, 2, ports.Identity1to1{})
		Expect(err).NotTo(HaveOccurred())
		Expect(dst.AddLink(l)).To(Succeed())
		l.ResizeDelayQueue()

		// Drive the queue to true state [10, 20] (oldest, newest).
		src.Array.SetF64At(0, 10)
		l.ShiftBufferedData()
		src.Array.SetF64At(0, 20)
		l.ShiftBufferedData()

		snaps := l.QueuedSnapshots()
		Expect(snaps).To(HaveLen(1))

		restored, err := ports.NewLink("identity1to1", "", src, 2, ports.Identity1to1{})
		Expect(err).NotTo(HaveOccurred())
		restoredDst := ports.NewInput("r2", "in", array.F64, true)
		restoredDst.Array.Resize(2)
		Expect(restoredDst.AddLink(restored)).To(Succeed())
		restored.RestoreQueuedSnapshots(snaps)

		// Mandatory post-load step: one ShiftBufferedData call fills the
		// excluded newest slot from the (separately restored) source.
		src.Array.SetF64At(0, 20)
		restored.ShiftBufferedData()

		restoredDst.PrepareInputs()
		Expect(restoredDst.Array.F64At(0)).To(Equal(10.0))
	})
})
