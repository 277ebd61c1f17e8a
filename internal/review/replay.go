package review

// ReplayStatus folds an ordered action trail into the request status it
// implies. Comments and revisions carry no status weight; everything
// else maps directly:
//
//	submitted            -> pending
//	assigned             -> in_review
//	approved             -> approved
//	rejected             -> rejected
//	changes_requested    -> changes_requested
//	reopened             -> pending
//
// The stored Request.Status is a cached projection of exactly this fold,
// and the two are asserted equal in tests.
func ReplayStatus(actions []Action) Status {
	var status Status
	for _, a := range actions {
		switch a.Kind {
		case ActionSubmitted:
			status = StatusPending
		case ActionAssigned:
			status = StatusInReview
		case ActionApproved:
			status = StatusApproved
		case ActionRejected:
			status = StatusRejected
		case ActionChangesRequested:
			status = StatusChangesRequested
		case ActionReopened:
			status = StatusPending
		case ActionCommentAdded, ActionRevisionSubmitted:
			// no status weight
		}
	}
	return status
}
