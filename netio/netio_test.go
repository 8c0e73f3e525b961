package netio_test

import (
	"bytes"

	"github.com/chhenning/flowengine/netio"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer/Reader", func() {
	It("should round-trip idents, keys, ints, floats, braces and brackets", func() {
		var buf bytes.Buffer
		w := netio.NewWriter(&buf)
		w.Ident("Network").Key("iteration").Int(42).
			OpenBrace().Key("name").Ident("r1").CloseBrace().
			OpenBracket(3).Float64(1.5).Float64(2.5).Float64(3.5).CloseBracket()
		Expect(w.Flush()).To(Succeed())

		r := netio.NewReader(&buf)
		Expect(r.ExpectIdent("Network")).To(Succeed())
		Expect(r.ExpectKey("iteration")).To(Succeed())
		n, err := r.ReadInt()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(42)))

		Expect(r.ExpectOpenBrace()).To(Succeed())
		Expect(r.ExpectKey("name")).To(Succeed())
		name, err := r.ReadIdent()
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("r1"))
		Expect(r.ExpectCloseBrace()).To(Succeed())

		count, err := r.ReadBracketCount()
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(3))
		for _, want := range []float64{1.5, 2.5, 3.5} {
			f, err := r.ReadFloat64()
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(want))
		}
		Expect(r.ExpectCloseBracket()).To(Succeed())
	})

	It("should round-trip byte payloads including the empty case", func() {
		var buf bytes.Buffer
		w := netio.NewWriter(&buf)
		w.Bytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}).Bytes(nil)
		Expect(w.Flush()).To(Succeed())

		r := netio.NewReader(&buf)
		b, err := r.ReadBytes()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

		empty, err := r.ReadBytes()
		Expect(err).NotTo(HaveOccurred())
		Expect(empty).To(BeEmpty())
	})

	It("should fail with a malformed-state error on a token mismatch", func() {
		var buf bytes.Buffer
		netio.NewWriter(&buf).Ident("foo").Flush()
		r := netio.NewReader(&buf)
		err := r.ExpectIdent("bar")
		Expect(err).To(HaveOccurred())
	})

	It("should fail on unexpected end of input", func() {
		r := netio.NewReader(bytes.NewReader(nil))
		_, err := r.Next()
		Expect(err).To(HaveOccurred())
	})
})
