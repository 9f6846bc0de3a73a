package supervisor

// Trigger records why an execution was started. It carries provenance only;
// every trigger kind causes the same action.
type Trigger interface {
	// Kind is a short lowercase name: start, manual or modify.
	Kind() string
	// Path is the changed file for Modify triggers and "" otherwise.
	Path() string
	isTrigger()
}

// Start is the implicit trigger issued once at startup.
type Start struct{}

// Manual is a user-requested rerun.
type Manual struct{}

// Modify is a filesystem change that passed the debouncer.
type Modify struct {
	File string
}

func (Start) Kind() string  { return "start" }
func (Manual) Kind() string { return "manual" }
func (Modify) Kind() string { return "modify" }

func (Start) Path() string    { return "" }
func (Manual) Path() string   { return "" }
func (m Modify) Path() string { return m.File }

func (Start) isTrigger()  {}
func (Manual) isTrigger() {}
func (Modify) isTrigger() {}

// Describe renders a trigger for display, e.g. "modify src/main.go".
func Describe(t Trigger) string {
	if t == nil {
		return "none"
	}
	if p := t.Path(); p != "" {
		return t.Kind() + " " + p
	}
	return t.Kind()
}
