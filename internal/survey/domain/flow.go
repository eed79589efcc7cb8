package domain

import (
	"errors"
	"fmt"
)

// NodeID identifies a question node in the wizard graph.
type NodeID string

const (
	NodeFamilyStatus      NodeID = "family_status"
	NodeFatherIncome      NodeID = "father_income"
	NodeMotherIncome      NodeID = "mother_income"
	NodeLivingWith        NodeID = "living_with"
	NodeLegalStatus       NodeID = "legal_status"
	NodeParentIncome      NodeID = "parent_income"
	NodeGuardianIncome    NodeID = "guardian_income"
	NodeParentLegalStatus NodeID = "parent_legal_status"
	NodeSummary           NodeID = "summary"
)

// Option is one selectable choice at a question node. Option values reuse
// the Answer enum values verbatim.
type Option string

var (
	// ErrFlowComplete is returned when advancing past the summary node.
	ErrFlowComplete = errors.New("questionnaire flow already complete")
	// ErrFlowIncomplete is returned when reading the result before the
	// summary node is reached.
	ErrFlowIncomplete = errors.New("questionnaire flow not complete")
	// ErrUnknownNode is returned when resuming from a node id that does not
	// lie on the path implied by the answer.
	ErrUnknownNode = errors.New("node not reachable with current answers")
)

// InvalidOptionError reports a choice that is not offered by the current node.
type InvalidOptionError struct {
	Node   NodeID
	Option Option
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("option %q is not valid at node %q", e.Option, e.Node)
}

// nodeSpec is one row of the wizard transition table. The branch structure
// lives entirely here: a node outside the active branch is never current,
// so its answer cannot be set.
type nodeSpec struct {
	prompt  string
	options []Option
	// assign writes the chosen option into the answer. Assigning a branch
	// selector also clears every downstream answer so a changed choice can
	// never leave stale values behind.
	assign func(*Answer, Option)
	// clear resets the answers owned by this node, used by back-navigation.
	clear func(*Answer)
	// next picks the following node given the updated answer.
	next func(Answer) NodeID
}

var nodeTable = map[NodeID]nodeSpec{
	NodeFamilyStatus: {
		prompt:  "What is your family situation?",
		options: []Option{Option(FamilyTogether), Option(FamilySingleParent), Option(FamilyGuardian)},
		assign: func(a *Answer, o Option) {
			*a = Answer{FamilyStatus: FamilyStatus(o)}
		},
		clear: func(a *Answer) { *a = Answer{} },
		next: func(a Answer) NodeID {
			switch a.FamilyStatus {
			case FamilySingleParent:
				return NodeLivingWith
			case FamilyGuardian:
				return NodeGuardianIncome
			default:
				return NodeFatherIncome
			}
		},
	},
	NodeFatherIncome: {
		prompt:  "Does your father have a steady income?",
		options: []Option{Option(HasIncome), Option(NoIncome)},
		assign:  func(a *Answer, o Option) { a.FatherIncome = IncomeStatus(o) },
		clear:   func(a *Answer) { a.FatherIncome = IncomeUnset },
		next:    func(Answer) NodeID { return NodeMotherIncome },
	},
	NodeMotherIncome: {
		prompt:  "Does your mother have a steady income?",
		options: []Option{Option(HasIncome), Option(NoIncome)},
		assign:  func(a *Answer, o Option) { a.MotherIncome = IncomeStatus(o) },
		clear:   func(a *Answer) { a.MotherIncome = IncomeUnset },
		next:    func(Answer) NodeID { return NodeSummary },
	},
	NodeLivingWith: {
		prompt:  "Which parent do you live with?",
		options: []Option{Option(ParentFather), Option(ParentMother)},
		assign: func(a *Answer, o Option) {
			a.LivingWith = Parent(o)
			a.FatherIncome = IncomeUnset
			a.MotherIncome = IncomeUnset
			a.LegalStatus = PossessionUnset
		},
		clear: func(a *Answer) {
			a.LivingWith = ParentUnset
			a.FatherIncome = IncomeUnset
			a.MotherIncome = IncomeUnset
			a.LegalStatus = PossessionUnset
		},
		next: func(Answer) NodeID { return NodeLegalStatus },
	},
	NodeLegalStatus: {
		prompt:  "Do you hold a divorce or death certificate copy?",
		options: []Option{Option(HasDocument), Option(NoDocument)},
		assign:  func(a *Answer, o Option) { a.LegalStatus = Possession(o) },
		clear:   func(a *Answer) { a.LegalStatus = PossessionUnset },
		next:    func(Answer) NodeID { return NodeParentIncome },
	},
	NodeParentIncome: {
		prompt:  "Does the parent you live with have a steady income?",
		options: []Option{Option(HasIncome), Option(NoIncome)},
		assign: func(a *Answer, o Option) {
			if a.LivingWith == ParentFather {
				a.FatherIncome = IncomeStatus(o)
			} else {
				a.MotherIncome = IncomeStatus(o)
			}
		},
		clear: func(a *Answer) {
			a.FatherIncome = IncomeUnset
			a.MotherIncome = IncomeUnset
		},
		next: func(Answer) NodeID { return NodeSummary },
	},
	NodeGuardianIncome: {
		prompt:  "Does your guardian have a steady income?",
		options: []Option{Option(HasIncome), Option(NoIncome)},
		assign:  func(a *Answer, o Option) { a.GuardianIncome = IncomeStatus(o) },
		clear:   func(a *Answer) { a.GuardianIncome = IncomeUnset },
		next:    func(Answer) NodeID { return NodeParentLegalStatus },
	},
	NodeParentLegalStatus: {
		prompt:  "Do you hold a divorce or death certificate copy of your parents?",
		options: []Option{Option(HasDocument), Option(NoDocument)},
		assign:  func(a *Answer, o Option) { a.ParentLegalStatus = Possession(o) },
		clear:   func(a *Answer) { a.ParentLegalStatus = PossessionUnset },
		next:    func(Answer) NodeID { return NodeSummary },
	},
	NodeSummary: {
		prompt: "Review your answers",
	},
}

// Path returns the node sequence implied by the answered questions so far,
// always starting at the family-status node and ending at the summary node
// once the active branch is fully answered.
func Path(a Answer) []NodeID {
	path := []NodeID{NodeFamilyStatus}

	switch a.FamilyStatus {
	case FamilyTogether:
		path = append(path, NodeFatherIncome)
		if a.FatherIncome != IncomeUnset {
			path = append(path, NodeMotherIncome)
		}
		if a.MotherIncome != IncomeUnset {
			path = append(path, NodeSummary)
		}
	case FamilySingleParent:
		path = append(path, NodeLivingWith)
		if a.LivingWith != ParentUnset {
			path = append(path, NodeLegalStatus)
		}
		if a.LegalStatus != PossessionUnset {
			path = append(path, NodeParentIncome)
		}
		if a.LivingWith != ParentUnset && a.livingWithIncome() != IncomeUnset {
			path = append(path, NodeSummary)
		}
	case FamilyGuardian:
		path = append(path, NodeGuardianIncome)
		if a.GuardianIncome != IncomeUnset {
			path = append(path, NodeParentLegalStatus)
		}
		if a.ParentLegalStatus != PossessionUnset {
			path = append(path, NodeSummary)
		}
	}
	return path
}

// Flow is the wizard over the question graph. The zero-cost representation
// is the answer plus the current node; the visited history is recomputed
// from the answer because every branch is a strict linear chain.
type Flow struct {
	answer Answer
	node   NodeID
}

// NewFlow starts a fresh questionnaire at the family-status question.
func NewFlow() *Flow {
	return &Flow{node: NodeFamilyStatus}
}

// Resume rebuilds a flow from a stored answer and node, validating that the
// node actually lies on the path implied by the answer.
func Resume(a Answer, node NodeID) (*Flow, error) {
	for _, n := range Path(a) {
		if n == node {
			return &Flow{answer: a, node: node}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
}

// Current returns the node the applicant is on.
func (f *Flow) Current() NodeID { return f.node }

// Answer returns a copy of the answers collected so far.
func (f *Flow) Answer() Answer { return f.answer }

// Prompt returns the question text of the current node.
func (f *Flow) Prompt() string { return nodeTable[f.node].prompt }

// Options returns the selectable choices at the current node. The summary
// node offers none.
func (f *Flow) Options() []Option {
	opts := nodeTable[f.node].options
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}

// Complete reports whether the flow reached the summary node.
func (f *Flow) Complete() bool { return f.node == NodeSummary }

// Result returns the final answer once the summary node is reached.
func (f *Flow) Result() (Answer, error) {
	if !f.Complete() {
		return Answer{}, ErrFlowIncomplete
	}
	return f.answer, nil
}

// Advance records the chosen option at the current node and moves to the
// next node of the active branch.
func (f *Flow) Advance(opt Option) (NodeID, error) {
	if f.node == NodeSummary {
		return f.node, ErrFlowComplete
	}
	spec := nodeTable[f.node]

	valid := false
	for _, o := range spec.options {
		if o == opt {
			valid = true
			break
		}
	}
	if !valid {
		return f.node, &InvalidOptionError{Node: f.node, Option: opt}
	}

	spec.assign(&f.answer, opt)
	f.node = spec.next(f.answer)
	return f.node, nil
}

// Back steps to the previous node and clears every answer attributable to
// that node or any later one, including the family status itself when
// backing out of the first branch question. Calling Back at the first node
// is a no-op.
func (f *Flow) Back() NodeID {
	path := Path(f.answer)

	idx := 0
	for i, n := range path {
		if n == f.node {
			idx = i
			break
		}
	}
	if idx == 0 {
		return f.node
	}

	// Clear from the node being returned to through the end of the path.
	// Snapshot first: clearing the branch selector rewrites the path.
	stale := append([]NodeID(nil), path[idx-1:]...)
	for _, n := range stale {
		if spec := nodeTable[n]; spec.clear != nil {
			spec.clear(&f.answer)
		}
	}
	f.node = path[idx-1]
	return f.node
}

// Reset clears all answers and returns to the first node.
func (f *Flow) Reset() {
	f.answer = Answer{}
	f.node = NodeFamilyStatus
}
