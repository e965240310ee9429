// Package scenario declares the guided conversations the bot can run with a user.
// Definitions are plain data plus pure functions; they are compiled once into a
// Registry at startup and shared read-only afterwards.
package scenario

import (
	"time"
)

// ID identifies a scenario. The set of IDs is closed: a stored state naming
// any other value is treated as corrupt.
type ID string

const (
	// Onboarding collects language, name and location of a new user.
	Onboarding ID = "onboarding"
	// EventCreation walks an organiser through creating an event.
	EventCreation ID = "event_creation"
	// GroupSetup configures a community group.
	GroupSetup ID = "group_setup"
	// AdminPanel is the admin menu loop.
	AdminPanel ID = "admin_panel"
)

var knownIDs = map[ID]struct{}{
	Onboarding:    {},
	EventCreation: {},
	GroupSetup:    {},
	AdminPanel:    {},
}

// Known reports whether id belongs to the closed set of scenarios.
func (id ID) Known() bool {
	_, ok := knownIDs[id]
	return ok
}

func (id ID) String() string { return string(id) }

// Data accumulates validated step values. Values are string, float64 or bool so
// that a JSON round trip yields the same map.
type Data map[string]any

// Clone returns a shallow copy; values are immutable scalars.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the value under key when it is a string.
func (d Data) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Number returns the value under key when it is numeric.
func (d Data) Number(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns the value under key when it is a boolean.
func (d Data) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Keys lists data keys in no particular order.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return keys
}

type targetKind uint8

const (
	targetSequential targetKind = iota
	targetStep
	targetTerminal
)

// Target is the result of a transition: a named step, the terminal marker, or
// Sequential to fall through to the next step in declaration order.
type Target struct {
	kind targetKind
	step string
}

var (
	// Sequential continues with the next declared step.
	Sequential = Target{kind: targetSequential}
	// Terminal ends the scenario and triggers its terminal action.
	Terminal = Target{kind: targetTerminal}
)

// To jumps to the named step.
func To(step string) Target {
	return Target{kind: targetStep, step: step}
}

// IsTerminal reports whether the scenario ends here.
func (t Target) IsTerminal() bool { return t.kind == targetTerminal }

// IsSequential reports whether the declaration order decides.
func (t Target) IsSequential() bool { return t.kind == targetSequential }

// Step returns the target step name; empty unless built with To.
func (t Target) Step() string { return t.step }

func (t Target) String() string {
	switch t.kind {
	case targetTerminal:
		return End
	case targetStep:
		return t.step
	default:
		return "sequential"
	}
}

// End is the rule target that ends a scenario.
const End = "$end"

// Validator turns raw user input into a step value. It must be deterministic
// and must not perform I/O. Rejections are reported as *ValidationError.
type Validator func(raw string) (any, error)

// Transition picks the next target from the validated value and the data
// accumulated so far, including the value just merged. It must not perform I/O.
type Transition func(value any, data Data) Target

// Rule is a declarative branch: when the expr-lang expression When evaluates
// to true, the scenario continues at Goto (a step name or End). The
// expression sees `value` and `data`.
type Rule struct {
	When string
	Goto string
}

// Step is one prompt/answer exchange.
type Step struct {
	Name string
	// Key is the data key the validated value is stored under; defaults to Name.
	Key string
	// Prompt is shown to the user when the step becomes current.
	Prompt string
	// Choices are rendered as buttons by the transport.
	Choices []string
	// Validate rejects malformed input; nil accepts any non-empty input.
	Validate Validator
	// Next overrides Rules when set.
	Next Transition
	// Rules are evaluated in order after Next; no match means Sequential.
	Rules []Rule
}

// DataKey returns the key the step writes to.
func (s *Step) DataKey() string {
	if s.Key != "" {
		return s.Key
	}
	return s.Name
}

// Check validates raw against the step.
func (s *Step) Check(raw string) (any, error) {
	if s.Validate == nil {
		return NonEmpty()(raw)
	}
	return s.Validate(raw)
}

// Definition describes one scenario.
type Definition struct {
	ID       ID
	Title    string
	Triggers []string
	Steps    []Step
	// TTL bounds how long a user may stay idle in the scenario.
	TTL time.Duration
	// ExtendOnActivity refreshes the expiry even when input is rejected.
	ExtendOnActivity bool
	// Interruptible lets another scenario's trigger replace this one.
	Interruptible bool
}

// First returns the entry step.
func (d *Definition) First() *Step {
	if d == nil || len(d.Steps) == 0 {
		return nil
	}
	return &d.Steps[0]
}
