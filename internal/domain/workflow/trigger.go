package workflow

// Trigger represents an event that can cause a state transition.
type Trigger string

const (
	// Task lifecycle triggers.
	TriggerStart           Trigger = "START"
	TriggerComplete        Trigger = "COMPLETE"
	TriggerRequestApproval Trigger = "REQUEST_APPROVAL"
	TriggerRework          Trigger = "REWORK"

	// Decision triggers shared by tasks and approval requests.
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
