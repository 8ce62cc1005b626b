// Package connstate is a small finite-state machine used by the transport
// clients to drive their connection lifecycle.
//
// States and events are plain strings. Transitions are registered with
// functional options; several transitions may share the same (from, event)
// pair and are tried in registration order, the first one whose guards all
// pass wins. Actions run before the state is updated and abort the
// transition on error. Listeners run after the update.
//
//	m := connstate.MustNew(Idle,
//	    connstate.WithTransition(Idle, Connecting, Dial),
//	    connstate.WithTransition(Connecting, Reconnecting, Fail,
//	        connstate.WithGuard(budgetLeft)),
//	    connstate.WithTransition(Connecting, GivenUp, Fail),
//	)
//	err := m.Fire(ctx, Fail, nil)
//
// Fire returns *ErrNoTransition when the event is not defined for the
// current state and *ErrRejected when every candidate guard refused it.
package connstate
