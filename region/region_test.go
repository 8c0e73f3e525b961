package region_test

import (
	"github.com/chhenning/flowengine/factory"
	"github.com/chhenning/flowengine/region"
	"github.com/chhenning/flowengine/testregions"
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Region", func() {
	var reg *factory.Registry

	BeforeEach(func() {
		reg = factory.New()
		Expect(testregions.Register(reg)).To(Succeed())
	})

	It("should construct from params with empty, correctly-typed ports", func() {
		r, err := region.NewFromParams("r1", testregions.EmitterNodeType, "value=10, size=4", reg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Name()).To(Equal("r1"))
		Expect(r.Initialized()).To(BeFalse())

		out, ok := r.Output("out")
		Expect(ok).To(BeTrue())
		Expect(out.Array.Count()).To(Equal(0))
	})

	It("should fail Compute before initialization", func() {
		r, err := region.NewFromParams("r1", testregions.EmitterNodeType, "value=10,size=4", reg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		err = r.Compute()
		Expect(err).To(HaveOccurred())
	})

	It("should size outputs on InitOutputs and run compute after Initialize", func() {
		r, err := region.NewFromParams("r1", testregions.EmitterNodeType, "value=10, size=4", reg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		Expect(r.InitOutputs()).To(Succeed())
		out, _ := r.Output("out")
		Expect(out.Array.Count()).To(Equal(4))

		r.InitInputs()
		Expect(r.Initialize()).To(Succeed())
		Expect(r.Compute()).To(Succeed())
		Expect(out.Array.F64At(0)).To(Equal(10.0))
	})

	It("should be idempotent on repeated Initialize", func() {
		r, _ := region.NewFromParams("r1", testregions.EmitterNodeType, "value=1,size=1", reg, logr.Discard())
		Expect(r.InitOutputs()).To(Succeed())
		r.InitInputs()

		Expect(r.Initialize()).To(Succeed())
		Expect(r.Initialize()).To(Succeed())
		Expect(r.Initialized()).To(BeTrue())
	})

	It("should report HasOutgoingLinks false for a freshly built region", func() {
		r, _ := region.NewFromParams("r1", testregions.EmitterNodeType, "value=1,size=1", reg, logr.Discard())
		Expect(r.HasOutgoingLinks()).To(BeFalse())
	})

	It("should reject unknown node types", func() {
		_, err := region.NewFromParams("r1", "noSuchType", "", reg, logr.Discard())
		Expect(err).To(HaveOccurred())
	})
})
