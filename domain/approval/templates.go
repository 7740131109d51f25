package approval

import (
	"approvalflow/bizerror"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Templates is the registry of approval templates by code, safe for concurrent use.
type Templates struct {
	lock      sync.RWMutex
	templates map[string]*Template
}

func NewTemplates() *Templates {
	return &Templates{templates: map[string]*Template{}}
}

// Register rejects templates that could leave an instance unroutable.
func (r *Templates) Register(t Template) error {
	if err := validate.Struct(&t); err != nil {
		return bizerror.NewConfigurationError("template %s: %v", t.Code, err)
	}
	for _, rule := range t.Rules {
		if err := validateChain(rule.Chain); err != nil {
			return bizerror.NewConfigurationError("template %s rule %s: %v", t.Code, rule.Name, err)
		}
	}
	if err := validateChain(t.DefaultChain); err != nil {
		return bizerror.NewConfigurationError("template %s default chain: %v", t.Code, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exists := r.templates[t.Code]; exists {
		return bizerror.NewConfigurationError("template %s registered twice", t.Code)
	}
	r.templates[t.Code] = &t
	return nil
}

func validateChain(chain []Node) error {
	if len(chain) == 0 {
		return bizerror.NewConfigurationError("chain is empty")
	}
	names := map[string]bool{}
	for _, node := range chain {
		if names[node.Name] {
			return bizerror.NewConfigurationError("node %s declared twice", node.Name)
		}
		names[node.Name] = true
	}
	return nil
}

func (r *Templates) Get(code string) (*Template, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.templates[code]
	return t, ok
}

func (r *Templates) Codes() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	codes := make([]string, 0, len(r.templates))
	for code := range r.templates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
