package network_test

import (
	"bytes"

	"github.com/chhenning/flowengine/factory"
	"github.com/chhenning/flowengine/network"
	"github.com/chhenning/flowengine/ports"
	"github.com/chhenning/flowengine/testregions"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newTestNetwork(name string) *network.Network {
	reg := factory.New()
	Expect(testregions.Register(reg)).To(Succeed())
	return network.NewBuilder().WithRegistry(reg).Build(name)
}

var _ = Describe("Network", func() {
	Describe("two-region feed-forward", func() {
		It("delay 0: r2's input equals r1's output after one iteration (S1)", func() {
			n := newTestNetwork("s1")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "value=10, size=64")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("r2", testregions.AdderNodeType, "size=64")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("r1", "out", "r2", "in0", "identity1to1", "", 0, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())

			Expect(n.Run(1)).To(Succeed())

			r2, _ := n.Region("r2")
			in0, _ := r2.Input("in0")
			for i := 0; i < 64; i++ {
				Expect(in0.Array.F64At(i)).To(Equal(10.0))
			}
		})

		It("delay 2: r2's input lags two iterations behind r1's emissions (S2)", func() {
			n := newTestNetwork("s2")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "size=8, sequence=[10 100]")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("r2", testregions.AdderNodeType, "size=8")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("r1", "out", "r2", "in0", "identity1to1", "", 2, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())

			expectInput := func(want float64) {
				r2, _ := n.Region("r2")
				in0, _ := r2.Input("in0")
				for i := 0; i < 8; i++ {
					Expect(in0.Array.F64At(i)).To(Equal(want))
				}
			}

			Expect(n.Run(1)).To(Succeed())
			expectInput(0)
			Expect(n.Run(1)).To(Succeed())
			expectInput(0)
			Expect(n.Run(1)).To(Succeed())
			expectInput(10)
			Expect(n.Run(1)).To(Succeed())
			expectInput(100)
		})
	})

	Describe("cycle with forward/feedback/lateral links (S3)", func() {
		buildCycle := func() *network.Network {
			n := newTestNetwork("s3")
			_, err := n.AddRegion("R1", testregions.AdderNodeType, "base=1")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("R2", testregions.AdderNodeType, "base=5")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("R3", testregions.AdderNodeType, "base=0")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("R4", testregions.AdderNodeType, "base=0")
			Expect(err).NotTo(HaveOccurred())

			// addRegion defaults every region to its own singleton phase;
			// regroup R1/R2 into phase 0 and R3/R4 into phase 1.
			Expect(n.SetPhases("R1", map[uint32]struct{}{0: {}})).To(Succeed())
			Expect(n.SetPhases("R2", map[uint32]struct{}{0: {}})).To(Succeed())
			Expect(n.SetPhases("R3", map[uint32]struct{}{1: {}})).To(Succeed())
			Expect(n.SetPhases("R4", map[uint32]struct{}{1: {}})).To(Succeed())

			_, err = n.Link("R1", "out", "R3", "in0", "identity1to1", "", 0, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("R2", "out", "R4", "in0", "identity1to1", "", 0, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("R3", "out", "R1", "in0", "identity1to1", "", 1, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("R4", "out", "R2", "in0", "identity1to1", "", 1, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("R4", "out", "R3", "in1", "identity1to1", "", 1, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("R3", "out", "R4", "in1", "identity1to1", "", 1, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())
			return n
		}

		readOutputs := func(n *network.Network) (r1, r2, r3, r4 float64) {
			get := func(name string) float64 {
				r, _ := n.Region(name)
				out, _ := r.Output("out")
				return out.Array.F64At(0)
			}
			return get("R1"), get("R2"), get("R3"), get("R4")
		}

		It("reproduces the documented first-element values for iterations 1-3", func() {
			n := buildCycle()

			Expect(n.Run(1)).To(Succeed())
			r1, r2, r3, r4 := readOutputs(n)
			Expect([]float64{r1, r2, r3, r4}).To(Equal([]float64{1, 5, 1, 5}))

			Expect(n.Run(1)).To(Succeed())
			r1, r2, r3, r4 = readOutputs(n)
			Expect([]float64{r1, r2, r3, r4}).To(Equal([]float64{2, 10, 7, 11}))

			Expect(n.Run(1)).To(Succeed())
			r1, r2, r3, r4 = readOutputs(n)
			Expect([]float64{r1, r2, r3, r4}).To(Equal([]float64{8, 16, 19, 23}))
		})

		It("round-trips through save/load and continues identically (S5)", func() {
			n := buildCycle()
			Expect(n.Run(2)).To(Succeed())

			var buf bytes.Buffer
			Expect(n.Save(&buf)).To(Succeed())

			n2 := newTestNetwork("s3-loaded")
			Expect(n2.Load(&buf)).To(Succeed())

			Expect(n.Run(2)).To(Succeed())
			Expect(n2.Run(2)).To(Succeed())

			want1, want2, want3, want4 := readOutputs(n)
			got1, got2, got3, got4 := readOutputs(n2)
			Expect(got1).To(Equal(want1))
			Expect(got2).To(Equal(want2))
			Expect(got3).To(Equal(want3))
			Expect(got4).To(Equal(want4))
		})
	})

	Describe("phase suppression with a self-loop (S4)", func() {
		It("freezes output while disabled and resumes accumulating feedback once re-enabled", func() {
			n := newTestNetwork("s4")
			_, err := n.AddRegion("R1", testregions.AdderNodeType, "base=1")
			Expect(err).NotTo(HaveOccurred())
			// A second, otherwise-idle region occupies phase 1 so the
			// enabled-phase window can be narrowed to exclude phase 0
			// (R1) without emptying phaseInfo altogether.
			_, err = n.AddRegion("idle", testregions.AdderNodeType, "")
			Expect(err).NotTo(HaveOccurred())

			_, err = n.Link("R1", "out", "R1", "in0", "identity1to1", "", 1, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())

			readR1 := func() float64 {
				r1, _ := n.Region("R1")
				out, _ := r1.Output("out")
				return out.Array.F64At(0)
			}

			Expect(n.Run(1)).To(Succeed())
			Expect(readR1()).To(Equal(1.0))

			Expect(n.SetMinEnabledPhase(1)).To(Succeed())
			Expect(n.Run(1)).To(Succeed())
			Expect(readR1()).To(Equal(1.0))
			Expect(n.Run(1)).To(Succeed())
			Expect(readR1()).To(Equal(1.0))

			Expect(n.SetMinEnabledPhase(0)).To(Succeed())
			Expect(n.Run(1)).To(Succeed())
			Expect(readR1()).To(Equal(2.0))
			Expect(n.Run(1)).To(Succeed())
			Expect(readR1()).To(Equal(3.0))
		})
	})

	Describe("region removal protection (S6)", func() {
		It("rejects removing a region with an outgoing link, then allows it once unlinked", func() {
			n := newTestNetwork("s6")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "value=10, size=1")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("r2", testregions.AdderNodeType, "size=1")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("r1", "out", "r2", "in0", "identity1to1", "", 0, ports.Identity1to1{})
			Expect(err).NotTo(HaveOccurred())

			Expect(n.Run(1)).To(Succeed())

			Expect(n.RemoveRegion("r1")).To(HaveOccurred())

			r2, _ := n.Region("r2")
			r2.Uninitialize()
			Expect(n.Unlink("r1", "out", "r2", "in0")).To(Succeed())

			Expect(n.RemoveRegion("r1")).To(Succeed())
			_, ok := n.Region("r1")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("error paths", func() {
		It("fails AddRegion on a duplicate name", func() {
			n := newTestNetwork("dup")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("r1", testregions.EmitterNodeType, "")
			Expect(err).To(HaveOccurred())
		})

		It("fails Link when an endpoint region is unknown", func() {
			n := newTestNetwork("badlink")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.Link("r1", "out", "noSuchRegion", "in0", "identity1to1", "", 0, ports.Identity1to1{})
			Expect(err).To(HaveOccurred())
		})

		It("fails Unlink when the pair is not connected", func() {
			n := newTestNetwork("nolink")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = n.AddRegion("r2", testregions.AdderNodeType, "")
			Expect(err).NotTo(HaveOccurred())
			err = n.Unlink("r1", "out", "r2", "in0")
			Expect(err).To(HaveOccurred())
		})

		It("is idempotent across repeated initialize-triggering runs (initialize idempotence)", func() {
			n := newTestNetwork("idem")
			_, err := n.AddRegion("r1", testregions.EmitterNodeType, "value=3")
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Run(1)).To(Succeed())
			Expect(n.Initialized()).To(BeTrue())
			Expect(n.Run(1)).To(Succeed())
			Expect(n.Iteration()).To(Equal(uint64(2)))
		})
	})
})
