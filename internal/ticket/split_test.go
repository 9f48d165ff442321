package ticket

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Split", func() {
	var (
		items       []Item
		total       string
		assignments Assignments
		result      SplitResult
	)

	BeforeEach(func() {
		total = ""
	})

	JustBeforeEach(func() {
		var totalPtr *decimal.Decimal
		if total != "" {
			totalPtr = moneyPtr(total)
		}
		result = Split(items, totalPtr, assignments)
	})

	shareFor := func(name string) Share {
		for _, s := range result.Shares {
			if s.Participant == name {
				return s
			}
		}
		Fail("no share for " + name)
		return Share{}
	}

	When("every item is claimed by exactly one person", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "CAFE", Quantity: 1, Price: money("2.00"), TotalPrice: money("2.00")},
				{ID: 2, Name: "TOSTADA", Quantity: 1, Price: money("3.00"), TotalPrice: money("3.00")},
			}
			assignments = NewAssignments([]string{"alice", "bob"}, map[string][]Claim{
				"alice": {{ItemID: 1, Quantity: 1}},
				"bob":   {{ItemID: 2, Quantity: 1}},
			})
		})

		It("should charge each person their own items", func() {
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("2.00"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("3.00"))
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("5.00"))
			Expect(shareFor("alice").Items).To(HaveLen(1))
			Expect(shareFor("alice").SharedItems).To(BeEmpty())
		})
	})

	When("an item is claimed by nobody", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "PAELLA", Quantity: 1, Price: money("5.00"), TotalPrice: money("5.00")},
			}
			assignments = NewAssignments([]string{"alice", "bob"}, nil)
		})

		It("should split it equally across all participants", func() {
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("2.50"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("2.50"))
			Expect(shareFor("alice").SharedItems).To(HaveLen(1))
			Expect(shareFor("alice").Items).To(BeEmpty())
		})
	})

	When("an item is partially claimed", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "CROQUETAS", Quantity: 4, Price: money("2.00"), TotalPrice: money("8.00")},
			}
			assignments = NewAssignments([]string{"alice", "bob"}, map[string][]Claim{
				"alice": {{ItemID: 1, Quantity: 1}},
				"bob":   {{ItemID: 1, Quantity: 1}},
			})
		})

		It("should split the remainder among the claimants only", func() {
			alice := shareFor("alice")
			Expect(alice.Items).To(HaveLen(1))
			Expect(alice.Items[0].Cost.StringFixed(2)).To(Equal("2.00"))
			Expect(alice.SharedItems).To(HaveLen(1))
			Expect(alice.SharedItems[0].Quantity).To(BeNumerically("~", 1.0, 1e-9))
			Expect(alice.AmountDue.StringFixed(2)).To(Equal("4.00"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("4.00"))
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("8.00"))
		})
	})

	When("claims exceed the item quantity", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "GAMBAS", Quantity: 2, Price: money("3.00"), TotalPrice: money("6.00")},
			}
			assignments = NewAssignments([]string{"alice", "bob"}, map[string][]Claim{
				"alice": {{ItemID: 1, Quantity: 3}},
				"bob":   {{ItemID: 1, Quantity: 1}},
			})
		})

		It("should scale claims down proportionally and warn", func() {
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("4.50"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("1.50"))
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("6.00"))
			Expect(result.Warnings).To(ContainElement(ContainSubstring("scaled down proportionally")))
		})
	})

	When("a claim names an item that is not on the receipt", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "CAFE", Quantity: 1, Price: money("2.00"), TotalPrice: money("2.00")},
			}
			assignments = NewAssignments([]string{"alice"}, map[string][]Claim{
				"alice": {{ItemID: 99, Quantity: 1}},
			})
		})

		It("should warn and still attribute the whole receipt", func() {
			Expect(result.Warnings).To(ContainElement(ContainSubstring("unknown item id 99")))
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("2.00"))
		})
	})

	When("a bare claim has no quantity", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "TABLA DE QUESOS", Quantity: 2, Price: money("2.00"), TotalPrice: money("4.00")},
			}
			assignments = NewAssignments([]string{"alice", "bob"}, map[string][]Claim{
				"alice": {{ItemID: 1}},
			})
		})

		It("should treat it as a whole-item claim", func() {
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("4.00"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("0.00"))
		})
	})

	When("the rounded shares do not quite reach the total", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "MARISCADA", Quantity: 1, Price: money("10.00"), TotalPrice: money("10.00")},
			}
			assignments = NewAssignments([]string{"ann", "bea", "cai"}, nil)
		})

		It("should pin the leftover penny on the first largest share", func() {
			Expect(shareFor("ann").AmountDue.StringFixed(2)).To(Equal("3.34"))
			Expect(shareFor("bea").AmountDue.StringFixed(2)).To(Equal("3.33"))
			Expect(shareFor("cai").AmountDue.StringFixed(2)).To(Equal("3.33"))
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("10.00"))
		})
	})

	When("the printed total exceeds the item sum", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "ENTRECOT", Quantity: 1, Price: money("10.00"), TotalPrice: money("10.00")},
			}
			total = "12.00"
			assignments = NewAssignments([]string{"alice", "bob"}, map[string][]Claim{
				"alice": {{ItemID: 1, Quantity: 1}},
			})
		})

		It("should split the non-itemized excess equally across everyone", func() {
			Expect(shareFor("alice").AmountDue.StringFixed(2)).To(Equal("11.00"))
			Expect(shareFor("bob").AmountDue.StringFixed(2)).To(Equal("1.00"))
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("12.00"))
		})
	})

	When("there are no participants", func() {
		BeforeEach(func() {
			items = []Item{
				{ID: 1, Name: "CAFE", Quantity: 1, Price: money("2.00"), TotalPrice: money("2.00")},
			}
			assignments = NewAssignments(nil, nil)
		})

		It("should attribute nothing and warn", func() {
			Expect(result.Shares).To(BeEmpty())
			Expect(result.TotalCalculated.StringFixed(2)).To(Equal("0.00"))
			Expect(result.Warnings).NotTo(BeEmpty())
		})
	})
})

var _ = Describe("Assignments", func() {
	When("decoding a request body", func() {
		It("should accept bare ids and claim objects alike", func() {
			var a Assignments
			body := []byte(`{"alice": [1, {"item_id": 2, "quantity": 0.5}], "bob": []}`)
			Expect(json.Unmarshal(body, &a)).To(Succeed())
			Expect(a.Participants()).To(Equal([]string{"alice", "bob"}))
			Expect(a.Claims("alice")).To(Equal([]Claim{
				{ItemID: 1, Quantity: 0},
				{ItemID: 2, Quantity: 0.5},
			}))
			Expect(a.Claims("bob")).To(BeEmpty())
		})

		It("should preserve the participant order of the body", func() {
			var a Assignments
			body := []byte(`{"zoe": [], "ana": [], "mia": []}`)
			Expect(json.Unmarshal(body, &a)).To(Succeed())
			Expect(a.Participants()).To(Equal([]string{"zoe", "ana", "mia"}))
		})

		It("should reject a non-object body", func() {
			var a Assignments
			Expect(json.Unmarshal([]byte(`["alice"]`), &a)).NotTo(Succeed())
		})

		It("should reject a claim that is neither id nor object", func() {
			var a Assignments
			Expect(json.Unmarshal([]byte(`{"alice": ["one"]}`), &a)).NotTo(Succeed())
		})
	})

	When("encoding", func() {
		It("should keep the original key order", func() {
			a := NewAssignments([]string{"zoe", "ana"}, map[string][]Claim{
				"zoe": {{ItemID: 1, Quantity: 2}},
			})
			out, err := json.Marshal(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal(`{"zoe":[{"item_id":1,"quantity":2}],"ana":[]}`))
		})
	})
})
