package state_test

import (
	"approvalflow/bizerror"
	"approvalflow/domain/state"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Table", func() {
	var (
		table *state.Table
	)

	BeforeEach(func() {
		//         PENDING      DOING         DONE
		// PENDING   -            V (begin)   V (close)
		// DOING     V (cancel)   -           V (finish)
		// DONE      V (reopen)   X			  -
		table = state.MustNewTable("task", "PENDING",
			[]state.State{{Name: "PENDING"}, {Name: "DOING", Category: state.InProcess}, {Name: "DONE", Category: state.Done}},
			[]state.Transition{
				{Name: "begin", From: state.State{Name: "PENDING"}, To: state.State{Name: "DOING"}},
				{Name: "close", From: state.State{Name: "PENDING"}, To: state.State{Name: "DONE"}},
				{Name: "cancel", From: state.State{Name: "DOING"}, To: state.State{Name: "PENDING"}},
				{Name: "finish", From: state.State{Name: "DOING"}, To: state.State{Name: "DONE"}},
				{Name: "reopen", From: state.State{Name: "DONE"}, To: state.State{Name: "PENDING"}},
			})
	})

	Describe("NewTable", func() {
		Context("With given PENDING-DOING-DONE states and transitions", func() {
			It("should create new table successfully", func() {
				Expect(table).NotTo(BeZero())
				Expect(table.EntityType).To(Equal("task"))
				Expect(table.StateNames()).Should(Equal([]string{"PENDING", "DOING", "DONE"}))
				s, found := table.FindState("DOING")
				Expect(found).To(BeTrue())
				Expect(s).To(Equal(state.State{Name: "DOING", Category: state.InProcess}))
				_, found = table.FindState("UNKNOWN")
				Expect(found).To(BeFalse())
			})
		})

		Context("With broken declarations", func() {
			It("should reject duplicate edges", func() {
				_, err := state.NewTable("t", "A", []state.State{{Name: "A"}, {Name: "B"}}, []state.Transition{
					{Name: "x", From: state.State{Name: "A"}, To: state.State{Name: "B"}},
					{Name: "y", From: state.State{Name: "A"}, To: state.State{Name: "B"}},
				})
				Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("A -> B declared twice"))
			})

			It("should reject undeclared states", func() {
				_, err := state.NewTable("t", "A", []state.State{{Name: "A"}}, []state.Transition{
					{Name: "x", From: state.State{Name: "A"}, To: state.State{Name: "B"}},
				})
				Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("undeclared state B"))

				_, err = state.NewTable("t", "Z", []state.State{{Name: "A"}}, nil)
				Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())

				_, err = state.NewTable("t", "A", []state.State{{Name: "A"}, {Name: "A"}}, nil)
				Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())
			})

			It("should reject orphan states", func() {
				_, err := state.NewTable("t", "A", []state.State{{Name: "A"}, {Name: "B"}, {Name: "C"}}, []state.Transition{
					{Name: "x", From: state.State{Name: "A"}, To: state.State{Name: "B"}},
					{Name: "y", From: state.State{Name: "C"}, To: state.State{Name: "A"}},
				})
				Expect(errors.Is(err, bizerror.ErrConfiguration)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("state C is unreachable from A"))
			})

			It("should panic in MustNewTable", func() {
				Expect(func() {
					state.MustNewTable("t", "A", []state.State{{Name: "A"}, {Name: "B"}}, nil)
				}).To(Panic())
			})
		})
	})

	Describe("AvailableTransitions", func() {
		Context("With given PENDING-DOING-DONE states and transitions", func() {
			It("should return availableTransitions as expected", func() {
				names := func(transitions []state.Transition) []string {
					var r []string
					for _, tr := range transitions {
						r = append(r, tr.Name)
					}
					return r
				}
				Ω(names(table.AvailableTransitions("PENDING", ""))).Should(Equal([]string{"begin", "close"}))
				Ω(names(table.AvailableTransitions("DOING", ""))).Should(Equal([]string{"cancel", "finish"}))
				Ω(names(table.AvailableTransitions("DONE", ""))).Should(Equal([]string{"reopen"}))
				Ω(names(table.AvailableTransitions("", "DONE"))).Should(Equal([]string{"close", "finish"}))
				Ω(names(table.AvailableTransitions("DOING", "DONE"))).Should(Equal([]string{"finish"}))
				Ω(len(table.AvailableTransitions("UNKNOWN", ""))).Should(Equal(0))
			})
		})
	})

	Describe("Lookup, Targets and IsTerminal", func() {
		It("should answer from the declared edges", func() {
			tr, found := table.Lookup("DOING", "DONE")
			Expect(found).To(BeTrue())
			Expect(tr.Name).To(Equal("finish"))
			_, found = table.Lookup("DONE", "DOING")
			Expect(found).To(BeFalse())

			Expect(table.Targets("PENDING")).To(Equal([]string{"DOING", "DONE"}))
			Expect(table.Targets("UNKNOWN")).To(BeEmpty())
			Expect(table.IsTerminal("DONE")).To(BeFalse())
			Expect(table.IsTerminal("UNKNOWN")).To(BeFalse())

			terminal := state.MustNewTable("t", "A", []state.State{{Name: "A"}, {Name: "B"}},
				[]state.Transition{{Name: "x", From: state.State{Name: "A"}, To: state.State{Name: "B"}}})
			Expect(terminal.IsTerminal("B")).To(BeTrue())
			Expect(terminal.IsTerminal("A")).To(BeFalse())
		})
	})
})
