package domain

// Action is the billing state change carried by a scheduled job.
type Action string

const (
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

// ActionFor maps the wire enable flag onto an Action.
func ActionFor(enable bool) Action {
	if enable {
		return ActionEnable
	}
	return ActionDisable
}

func (a Action) Valid() bool {
	return a == ActionEnable || a == ActionDisable
}
