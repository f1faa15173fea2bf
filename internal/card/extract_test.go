package card

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extract", func() {
	var (
		lines  []string
		result Result
	)

	JustBeforeEach(func() {
		result = Extract(lines)
	})

	When("the input is empty", func() {
		BeforeEach(func() {
			lines = []string{}
		})

		It("returns NotFound", func() {
			Expect(result.Found()).To(BeFalse())
		})
	})

	When("the input is nil", func() {
		BeforeEach(func() {
			lines = nil
		})

		It("returns NotFound", func() {
			Expect(result).To(Equal(NotFound()))
		})
	})

	When("a line is exactly a card number", func() {
		BeforeEach(func() {
			lines = []string{"4111111111111111"}
		})

		It("returns the number", func() {
			n, ok := result.Number()
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(Number("4111111111111111")))
		})
	})

	When("the number contains separators", func() {
		BeforeEach(func() {
			lines = []string{"4111-1111-1111-1111"}
		})

		It("ignores non-digit characters", func() {
			n, ok := result.Number()
			Expect(ok).To(BeTrue())
			Expect(n.String()).To(Equal("4111111111111111"))
		})
	})

	When("the number is spread with spaces and text", func() {
		BeforeEach(func() {
			lines = []string{"CARD NO 4111 1111 1111 1111"}
		})

		It("returns the digits", func() {
			n, _ := result.Number()
			Expect(n.String()).To(Equal("4111111111111111"))
		})
	})

	When("several lines match", func() {
		BeforeEach(func() {
			lines = []string{"garbage", "4111111111111111", "5500000000000004"}
		})

		It("returns the first match", func() {
			n, ok := result.Number()
			Expect(ok).To(BeTrue())
			Expect(n.String()).To(Equal("4111111111111111"))
		})
	})

	When("no line matches", func() {
		BeforeEach(func() {
			lines = []string{"JOHN DOE", "VALID THRU 12/29", "411111111111111", "BANK"}
		})

		It("returns NotFound", func() {
			Expect(result.Found()).To(BeFalse())
			n, ok := result.Number()
			Expect(ok).To(BeFalse())
			Expect(n).To(BeEmpty())
		})
	})

	When("a line has one digit too many", func() {
		BeforeEach(func() {
			lines = []string{"41111111111111111"}
		})

		It("returns NotFound", func() {
			Expect(result.Found()).To(BeFalse())
		})
	})
})

var _ = Describe("ExtractWith", func() {
	It("only uses the given matcher", func() {
		lines := []string{"5500 0000 0000 0004", "4111 1111 1111 1111"}

		n, ok := ExtractWith(lines, LegacyVisa).Number()
		Expect(ok).To(BeTrue())
		Expect(n.String()).To(Equal("4111111111111111"))

		n, ok = ExtractWith(lines, AllBrands).Number()
		Expect(ok).To(BeTrue())
		Expect(n.String()).To(Equal("5500000000000004"))
	})

	It("is safe for concurrent callers", func() {
		var wg sync.WaitGroup
		results := make([]Result, 32)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					results[i] = Extract([]string{"4111111111111111"})
				} else {
					results[i] = Extract([]string{"nothing here"})
				}
			}(i)
		}
		wg.Wait()
		for i, r := range results {
			Expect(r.Found()).To(Equal(i%2 == 0))
		}
	})
})

var _ = Describe("Digits", func() {
	It("strips everything but ASCII digits", func() {
		Expect(Digits("a1 b2-c3.4")).To(Equal("1234"))
	})

	It("returns empty for text without digits", func() {
		Expect(Digits("VISA")).To(BeEmpty())
	})
})

var _ = Describe("Number", func() {
	It("returns the last four digits", func() {
		Expect(Number("4111111111111234").LastFour()).To(Equal("1234"))
	})

	It("returns short numbers unchanged", func() {
		Expect(Number("12").LastFour()).To(Equal("12"))
	})
})
