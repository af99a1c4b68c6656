package events

type Kind string

type Event interface {
	Kind() Kind
	workflowEvent()
}

type Base struct {
	kind Kind
}

func NewBase(kind Kind) Base {
	return Base{kind: kind}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (Base) workflowEvent() {}
