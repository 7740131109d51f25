package state

import (
	"approvalflow/bizerror"
	"sort"
)

type Category uint

const (
	InBacklog Category = iota
	InProcess
	Done
)

type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// NotifyPolicy names the roles told about a transition and the template used to tell them.
type NotifyPolicy struct {
	Roles    []string `json:"roles,omitempty"`
	Template string   `json:"template,omitempty"`
}

type Transition struct {
	Name       string       `json:"name"`
	From       State        `json:"from"`
	To         State        `json:"to"`
	Permission string       `json:"permission,omitempty"`
	Notify     NotifyPolicy `json:"notify"`

	// Validate may reject the transition with a StateMachineValidationError, nothing has been changed at that point.
	Validate func(c *TransitionContext) error `json:"-"`
	// Apply mutates the entity's own fields once validation passed.
	Apply func(c *TransitionContext) `json:"-"`
	// Events lists cross-aggregate effects, they are handled after commit.
	Events func(c *TransitionContext) []EventSpec `json:"-"`
}

type edge struct {
	from string
	to   string
}

// Table is the statically declared transition graph of one entity type. It is built once and read concurrently.
type Table struct {
	EntityType  string       `json:"entityType"`
	Initial     string       `json:"initial"`
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`

	states map[string]State
	edges  map[edge]int
}

// NewTable rejects duplicate edges, edges touching undeclared states and states unreachable from the initial state.
func NewTable(entityType, initial string, states []State, transitions []Transition) (*Table, error) {
	t := &Table{EntityType: entityType, Initial: initial, States: states, Transitions: transitions,
		states: map[string]State{}, edges: map[edge]int{}}

	for _, s := range states {
		if _, dup := t.states[s.Name]; dup {
			return nil, bizerror.NewConfigurationError("%s: state %s declared twice", entityType, s.Name)
		}
		t.states[s.Name] = s
	}
	if _, ok := t.states[initial]; !ok {
		return nil, bizerror.NewConfigurationError("%s: initial state %s is not declared", entityType, initial)
	}

	for i, tr := range transitions {
		if _, ok := t.states[tr.From.Name]; !ok {
			return nil, bizerror.NewConfigurationError("%s: transition %s uses undeclared state %s", entityType, tr.Name, tr.From.Name)
		}
		if _, ok := t.states[tr.To.Name]; !ok {
			return nil, bizerror.NewConfigurationError("%s: transition %s uses undeclared state %s", entityType, tr.Name, tr.To.Name)
		}
		key := edge{from: tr.From.Name, to: tr.To.Name}
		if _, dup := t.edges[key]; dup {
			return nil, bizerror.NewConfigurationError("%s: transition %s -> %s declared twice", entityType, key.from, key.to)
		}
		t.edges[key] = i
	}

	reached := map[string]bool{initial: true}
	queue := []string{initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, tr := range transitions {
			if tr.From.Name == current && !reached[tr.To.Name] {
				reached[tr.To.Name] = true
				queue = append(queue, tr.To.Name)
			}
		}
	}
	for _, s := range states {
		if !reached[s.Name] {
			return nil, bizerror.NewConfigurationError("%s: state %s is unreachable from %s", entityType, s.Name, initial)
		}
	}
	return t, nil
}

func MustNewTable(entityType, initial string, states []State, transitions []Transition) *Table {
	t, err := NewTable(entityType, initial, states, transitions)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) FindState(name string) (State, bool) {
	s, ok := t.states[name]
	return s, ok
}

func (t *Table) Lookup(from, to string) (*Transition, bool) {
	i, ok := t.edges[edge{from: from, to: to}]
	if !ok {
		return nil, false
	}
	return &t.Transitions[i], true
}

// AvailableTransitions filters by from and to, an empty value matches any state.
func (t *Table) AvailableTransitions(fromState string, toState string) []Transition {
	r := []Transition{}
	for _, transition := range t.Transitions {
		if (fromState == "" || fromState == transition.From.Name) && (toState == "" || toState == transition.To.Name) {
			r = append(r, transition)
		}
	}
	return r
}

func (t *Table) Targets(from string) []string {
	var targets []string
	for _, transition := range t.AvailableTransitions(from, "") {
		targets = append(targets, transition.To.Name)
	}
	sort.Strings(targets)
	return targets
}

func (t *Table) IsTerminal(name string) bool {
	if _, ok := t.states[name]; !ok {
		return false
	}
	return len(t.AvailableTransitions(name, "")) == 0
}

func (t *Table) StateNames() []string {
	names := make([]string, 0, len(t.States))
	for _, s := range t.States {
		names = append(names, s.Name)
	}
	return names
}
