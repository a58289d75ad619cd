package card

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockParser replays canned parse results in order
type mockParser struct {
	results []Record
	calls   int
}

func (m *mockParser) Parse(fragments []string) (Record, bool) {
	r := m.results[m.calls%len(m.results)]
	m.calls++
	return r, r.Valid()
}

var _ = Describe("Engine", func() {
	var engine *Engine

	Describe("with the text parser", func() {
		BeforeEach(func() {
			engine = NewEngine(NewTextParserWithClock(&mockTimeSource{now: midYear2025}, false), 3)
		})

		It("should stabilise after three valid frames", func() {
			frames := [][]string{
				{"VALID THRU 11/29", "4111 1111 1111 1111"},
				{"JOHN SMITH"},
				{"4111 1111 1111 1111"},
				{"VALID THRU 11/29", "4111 1111 1111 1111"},
			}

			var (
				out  Record
				done bool
			)
			for i, f := range frames {
				out, done = engine.ProcessFrame(f)
				if i < len(frames)-1 {
					Expect(done).To(BeFalse())
				}
			}

			Expect(done).To(BeTrue())
			Expect(out).To(Equal(Record{Number: "4111111111111111", Network: Visa, Expiry: "1129"}))
			Expect(engine.Pending()).To(BeZero())
		})

		It("should count only valid frames as pending", func() {
			engine.ProcessFrame([]string{"4111111111111111"})
			engine.ProcessFrame([]string{"no digits here"})
			engine.ProcessFrame(nil)
			Expect(engine.Pending()).To(Equal(1))
		})
	})

	Describe("with a replaceable parser", func() {
		var parser *mockParser

		BeforeEach(func() {
			parser = &mockParser{results: []Record{{Number: numberB, Network: MasterCard}}}
			engine = NewEngine(parser, 2)
		})

		It("should call the parser once per frame", func() {
			engine.ProcessFrame([]string{"a"})
			_, done := engine.ProcessFrame([]string{"b"})
			Expect(parser.calls).To(Equal(2))
			Expect(done).To(BeTrue())
		})

		It("should drop buffered samples on reset", func() {
			engine.ProcessFrame([]string{"a"})
			engine.Reset()
			Expect(engine.Pending()).To(BeZero())
			Expect(engine.TryCount()).To(Equal(2))
		})
	})
})
