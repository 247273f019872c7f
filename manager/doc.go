// Package manager owns the live agent instances of a runtime and exposes the
// only entry points collaborators use to drive them: LoadAgent,
// AttachCapability, DetachCapability, Run, Cancel and UnloadAgent.
//
// Operations are serialized per instance by an operation mutex; the table of
// instances has its own lock that is held only for map access, so unrelated
// agents never contend. Run returns as soon as the instance is BUSY and the
// executor goroutine has been started. The outcome of a run is reported
// asynchronously through bridge events and a state transition:
//
//	executor returns nil               -> Completed, BUSY -> IDLE
//	executor fails with CapabilityError -> Error,     BUSY -> IDLE
//	executor fails otherwise            -> Error,     BUSY -> ERROR
//	Cancel                             -> (no terminal event), BUSY -> IDLE
//
// Cancel is cooperative: the run context is cancelled and the manager waits
// for the executor goroutine to exit before entering IDLE, so a late callback
// can never race with the next run. For sandboxed agents the sandbox is torn
// down if the executor does not exit within the cancel grace period and is
// restarted once it does.
package manager
