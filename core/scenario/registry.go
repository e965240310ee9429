package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrUnknownScenario is returned for lookups of an ID the registry does not hold.
var ErrUnknownScenario = errors.New("scenario: unknown scenario")

// ErrUnknownStep is returned when a step name is not declared by its scenario.
var ErrUnknownStep = errors.New("scenario: unknown step")

type compiledRule struct {
	source  string
	program *vm.Program
	target  Target
}

type entry struct {
	def   Definition
	index map[string]int
	rules map[string][]compiledRule
}

// Registry is the immutable set of scenario definitions. It is safe for
// concurrent use.
type Registry struct {
	entries  map[ID]*entry
	order    []ID
	triggers map[string]ID
}

// NewRegistry verifies defs and compiles their branch rules.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		entries:  make(map[ID]*entry, len(defs)),
		triggers: make(map[string]ID),
	}
	for _, def := range defs {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on invalid definitions.
func MustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(def Definition) error {
	if !def.ID.Known() {
		return fmt.Errorf("scenario: %q is not a known scenario id", def.ID)
	}
	if _, dup := r.entries[def.ID]; dup {
		return fmt.Errorf("scenario: duplicate definition %q", def.ID)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("scenario: %s has no steps", def.ID)
	}
	if def.TTL <= 0 {
		return fmt.Errorf("scenario: %s ttl must be positive", def.ID)
	}

	e := &entry{
		def:   def,
		index: make(map[string]int, len(def.Steps)),
		rules: make(map[string][]compiledRule),
	}
	e.def.Steps = append([]Step(nil), def.Steps...)
	e.def.Triggers = append([]string(nil), def.Triggers...)
	for i, st := range e.def.Steps {
		name := st.Name
		if name == "" || name == End || name != strings.TrimSpace(name) {
			return fmt.Errorf("scenario: %s step %d has an invalid name %q", def.ID, i, st.Name)
		}
		if _, dup := e.index[name]; dup {
			return fmt.Errorf("scenario: %s declares step %q twice", def.ID, name)
		}
		e.index[name] = i
	}
	for _, st := range e.def.Steps {
		for _, rule := range st.Rules {
			cr, err := compileRule(e, rule)
			if err != nil {
				return fmt.Errorf("scenario: %s step %q: %w", def.ID, st.Name, err)
			}
			e.rules[st.Name] = append(e.rules[st.Name], cr)
		}
	}

	for _, t := range e.def.Triggers {
		key := normalizeTrigger(t)
		if key == "" {
			return fmt.Errorf("scenario: %s has an empty trigger", def.ID)
		}
		if owner, taken := r.triggers[key]; taken {
			return fmt.Errorf("scenario: trigger %q used by both %s and %s", key, owner, def.ID)
		}
		r.triggers[key] = def.ID
	}

	r.entries[def.ID] = e
	r.order = append(r.order, def.ID)
	return nil
}

func compileRule(e *entry, rule Rule) (compiledRule, error) {
	var target Target
	switch {
	case rule.Goto == End:
		target = Terminal
	default:
		if _, ok := e.index[rule.Goto]; !ok {
			return compiledRule{}, fmt.Errorf("rule target %q: %w", rule.Goto, ErrUnknownStep)
		}
		target = To(rule.Goto)
	}
	program, err := expr.Compile(rule.When,
		expr.Env(ruleEnv(nil, nil)),
		expr.AsBool(),
	)
	if err != nil {
		return compiledRule{}, fmt.Errorf("compile rule %q: %w", rule.When, err)
	}
	return compiledRule{source: rule.When, program: program, target: target}, nil
}

func ruleEnv(value any, data Data) map[string]any {
	m := make(map[string]any, len(data))
	for k, v := range data {
		m[k] = v
	}
	return map[string]any{"value": value, "data": m}
}

// IDs lists registered scenarios in registration order.
func (r *Registry) IDs() []ID {
	return append([]ID(nil), r.order...)
}

// Definition returns the definition registered under id.
func (r *Registry) Definition(id ID) (*Definition, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return &e.def, true
}

// ByTrigger resolves raw input to the scenario it starts. Matching is
// case-insensitive and ignores a trailing @botname on commands.
func (r *Registry) ByTrigger(raw string) (*Definition, bool) {
	id, ok := r.triggers[normalizeTrigger(raw)]
	if !ok {
		return nil, false
	}
	return r.Definition(id)
}

// Step returns the named step of scenario id.
func (r *Registry) Step(id ID, name string) (*Step, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return &e.def.Steps[i], true
}

// Next resolves where scenario id goes after step accepted value. data already
// contains value. The result is either a declared step (via To) or Terminal.
func (r *Registry) Next(id ID, step string, value any, data Data) (Target, error) {
	e, ok := r.entries[id]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	i, ok := e.index[step]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s/%s", ErrUnknownStep, id, step)
	}
	st := &e.def.Steps[i]

	target := Sequential
	if st.Next != nil {
		target = st.Next(value, data)
	} else if rules := e.rules[st.Name]; len(rules) > 0 {
		env := ruleEnv(value, data)
		for _, rule := range rules {
			out, err := expr.Run(rule.program, env)
			if err != nil {
				return Target{}, fmt.Errorf("scenario: %s/%s rule %q: %w", id, step, rule.source, err)
			}
			if matched, _ := out.(bool); matched {
				target = rule.target
				break
			}
		}
	}

	switch {
	case target.IsTerminal():
		return Terminal, nil
	case target.IsSequential():
		if i+1 >= len(e.def.Steps) {
			return Terminal, nil
		}
		return To(e.def.Steps[i+1].Name), nil
	default:
		if _, ok := e.index[target.Step()]; !ok {
			return Target{}, fmt.Errorf("%w: %s/%s", ErrUnknownStep, id, target.Step())
		}
		return target, nil
	}
}

// IsTrigger reports whether raw starts any registered scenario.
func (r *Registry) IsTrigger(raw string) bool {
	_, ok := r.triggers[normalizeTrigger(raw)]
	return ok
}

func normalizeTrigger(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "/") {
		if fields := strings.Fields(s); len(fields) > 0 {
			s = fields[0]
		}
		if at := strings.IndexByte(s, '@'); at > 0 {
			s = s[:at]
		}
	}
	return s
}
