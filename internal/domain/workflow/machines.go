package workflow

// NewTaskStatusMachine builds the task lifecycle machine positioned at the
// given status:
//
//	not_started -> in_progress -> completed -> pending_approval -> approved
//	                                                            -> rejected
//
// A rejected task may be reworked back to in_progress. Approved is terminal.
func NewTaskStatusMachine(current State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateNotStarted).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerComplete, StateCompleted)

	builder.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted)

	builder.Configure(StateCompleted).
		Permit(TriggerRequestApproval, StatePendingApproval).
		Permit(TriggerRework, StateInProgress)

	builder.Configure(StatePendingApproval).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StateRejected).
		Permit(TriggerRework, StateInProgress)

	return builder.Build(current)
}

// NewApprovalMachine builds the approval decision machine positioned at the
// given status. Pending may be decided exactly once; both outcomes are
// terminal. Escalation flips a flag on the request and is not a transition.
func NewApprovalMachine(current State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateApprovalPending).
		Permit(TriggerApprove, StateApprovalApproved).
		Permit(TriggerReject, StateApprovalRejected)

	return builder.Build(current)
}
