package models

// Action is what firing a reminder does: either Notify or Invoke.
type Action interface {
	isAction()
}

// Notify delivers Text to the reminder's target.
type Notify struct {
	Text string
}

// Invoke runs the nested action Tag with its opaque Payload.
type Invoke struct {
	Tag     string
	Payload string
}

func (Notify) isAction() {}
func (Invoke) isAction() {}

// DecodeAction picks the execution path of a claimed reminder. Invoke needs
// both a tag and a payload; anything else is a plain notification.
func DecodeAction(r Reminder) Action {
	if r.ActionTag != "" && r.Payload != "" {
		return Invoke{Tag: r.ActionTag, Payload: r.Payload}
	}
	return Notify{Text: r.Message}
}
