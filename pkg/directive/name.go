package directive

// Name is the closed set of directive kinds the transformer understands.
// Anything else parses as Unknown and is left in the tree untouched.
type Name int

const (
	Unknown Name = iota
	Concept
	Question
	Checkpoint
	Try
	Callout
	Reveal
	Hint
)

var names = map[string]Name{
	"concept":    Concept,
	"question":   Question,
	"checkpoint": Checkpoint,
	"try":        Try,
	"callout":    Callout,
	"reveal":     Reveal,
	"hint":       Hint,
}

// ParseName maps a raw directive name to its Name.
func ParseName(raw string) Name {
	if n, ok := names[raw]; ok {
		return n
	}
	return Unknown
}

func (n Name) String() string {
	switch n {
	case Concept:
		return "concept"
	case Question:
		return "question"
	case Checkpoint:
		return "checkpoint"
	case Try:
		return "try"
	case Callout:
		return "callout"
	case Reveal:
		return "reveal"
	case Hint:
		return "hint"
	}
	return "unknown"
}

// Component is the widget component rendered for n, or "" for kinds that
// never become widgets.
func (n Name) Component() string {
	switch n {
	case Concept:
		return "ConceptCard"
	case Question:
		return "QuestionBlock"
	case Checkpoint:
		return "Checkpoint"
	case Try:
		return "TryBlock"
	case Callout:
		return "Callout"
	}
	return ""
}

// needsID reports whether widgets of this kind carry an id attribute.
func (n Name) needsID() bool {
	switch n {
	case Concept, Question, Checkpoint, Try:
		return true
	}
	return false
}
