package ticket

import (
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var _ = Describe("Reconcile", func() {
	var (
		in  ParseResult
		out ParseResult
	)

	JustBeforeEach(func() {
		out = Reconcile(in)
	})

	When("everything is present and consistent", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "CAFE", Quantity: 2, Price: money("1.20"), TotalPrice: money("2.40")},
					{ID: 2, Name: "TARTA", Quantity: 1, Price: money("3.60"), TotalPrice: money("3.60")},
				},
				Subtotal: moneyPtr("6.00"),
				Tax:      moneyPtr("0.60"),
				Total:    moneyPtr("6.60"),
			}
		})

		It("should change nothing and add no warnings", func() {
			Expect(out.Subtotal.StringFixed(2)).To(Equal("6.00"))
			Expect(out.Tax.StringFixed(2)).To(Equal("0.60"))
			Expect(out.Total.StringFixed(2)).To(Equal("6.60"))
			Expect(out.Warnings).To(BeEmpty())
		})
	})

	When("the subtotal is missing", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "PAN", Quantity: 1, Price: money("1.10"), TotalPrice: money("1.10")},
					{ID: 2, Name: "LECHE", Quantity: 2, Price: money("0.95"), TotalPrice: money("1.90")},
				},
				Total: moneyPtr("3.30"),
			}
		})

		It("should fill it from the item sum and infer the tax", func() {
			Expect(out.Subtotal).NotTo(BeNil())
			Expect(out.Subtotal.StringFixed(2)).To(Equal("3.00"))
			Expect(out.Tax).NotTo(BeNil())
			Expect(out.Tax.StringFixed(2)).To(Equal("0.30"))
		})
	})

	When("the total is missing", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "MENU", Quantity: 1, Price: money("10.00"), TotalPrice: money("10.00")},
				},
				Subtotal: moneyPtr("10.00"),
				Tax:      moneyPtr("1.00"),
			}
		})

		It("should derive it from subtotal plus tax", func() {
			Expect(out.Total).NotTo(BeNil())
			Expect(out.Total.StringFixed(2)).To(Equal("11.00"))
		})
	})

	When("only a total and a tax were printed", func() {
		BeforeEach(func() {
			in = ParseResult{
				Total: moneyPtr("11.00"),
				Tax:   moneyPtr("1.00"),
			}
		})

		It("should derive the subtotal", func() {
			Expect(out.Subtotal).NotTo(BeNil())
			Expect(out.Subtotal.StringFixed(2)).To(Equal("10.00"))
		})
	})

	When("the printed subtotal disagrees wildly with the item sum", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "VINO", Quantity: 1, Price: money("12.00"), TotalPrice: money("12.00")},
				},
				Subtotal: moneyPtr("72.00"),
			}
		})

		It("should replace it with the item sum and warn", func() {
			Expect(out.Subtotal.StringFixed(2)).To(Equal("12.00"))
			Expect(out.Warnings).To(ContainElement(ContainSubstring("using item sum")))
		})
	})

	When("the printed subtotal is off by a few cents", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "VINO", Quantity: 1, Price: money("12.00"), TotalPrice: money("12.00")},
				},
				Subtotal: moneyPtr("12.05"),
			}
		})

		It("should keep the printed value but warn", func() {
			Expect(out.Subtotal.StringFixed(2)).To(Equal("12.05"))
			Expect(out.Warnings).To(ContainElement(ContainSubstring("differs from printed subtotal")))
		})
	})

	When("an item is missing its line total", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "AGUA", Quantity: 3, Price: money("1.00")},
				},
			}
		})

		It("should recompute it from quantity and unit price", func() {
			Expect(out.Items[0].TotalPrice.StringFixed(2)).To(Equal("3.00"))
		})
	})

	When("an item is missing its unit price", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "AGUA", Quantity: 4, TotalPrice: money("5.00")},
				},
			}
		})

		It("should recompute it from the line total", func() {
			Expect(out.Items[0].Price.StringFixed(2)).To(Equal("1.25"))
		})
	})

	When("an item's legs are inconsistent", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "CERVEZA", Quantity: 2, Price: money("1.50"), TotalPrice: money("4.50")},
				},
			}
		})

		It("should trust the money and infer the count", func() {
			Expect(out.Items[0].Quantity).To(Equal(3.0))
		})
	})

	When("applied twice", func() {
		BeforeEach(func() {
			in = ParseResult{
				Items: []Item{
					{ID: 1, Name: "CAFE", Quantity: 2, Price: money("1.20")},
					{ID: 2, Name: "TARTA", Quantity: 1, TotalPrice: money("3.60")},
				},
				Total: moneyPtr("6.60"),
			}
		})

		It("should be a fixed point after the first pass", func() {
			again := Reconcile(out)
			Expect(again).To(Equal(out))
		})
	})
})
