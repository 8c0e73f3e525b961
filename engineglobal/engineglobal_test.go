package engineglobal_test

import (
	"github.com/chhenning/flowengine/engineglobal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeHandle struct{ torn *bool }

func (f fakeHandle) Teardown() { *f.torn = true }

var _ = Describe("Registry", func() {
	It("tracks live-handle count across register/unregister", func() {
		before := engineglobal.LiveCount()
		torn := false
		token := engineglobal.Register(fakeHandle{torn: &torn})
		Expect(engineglobal.LiveCount()).To(Equal(before + 1))

		engineglobal.Unregister(token)
		Expect(engineglobal.LiveCount()).To(Equal(before))
		Expect(torn).To(BeFalse())
	})

	It("tears down every still-live handle on Shutdown", func() {
		torn1, torn2 := false, false
		engineglobal.Register(fakeHandle{torn: &torn1})
		engineglobal.Register(fakeHandle{torn: &torn2})

		engineglobal.Shutdown()

		Expect(torn1).To(BeTrue())
		Expect(torn2).To(BeTrue())
		Expect(engineglobal.LiveCount()).To(Equal(0))
	})

	It("reports live-network count through ReadStats", func() {
		engineglobal.Shutdown()
		torn := false
		engineglobal.Register(fakeHandle{torn: &torn})

		stats := engineglobal.ReadStats()
		Expect(stats.LiveNetworks).To(Equal(1))
		Expect(stats.String()).To(ContainSubstring("networks=1"))
	})
})
