// Package core provides the foundational domain types and interfaces shared by
// every layer of the agent runtime. It defines:
//
//   - Agents (pluggable units of behavior with an Initialize/Run/Stop surface)
//   - Executors and Callbacks (the task-execution backend contract)
//   - Events (immutable, sequence-stamped notifications about one agent)
//   - Capabilities (externally owned tools and retrievers an agent may invoke)
//   - Manifests and Descriptors (validated module identity)
//   - The lifecycle State enum and the runtime error taxonomy
//
// The package intentionally keeps implementation concerns (loading, state
// transitions, event delivery, presentation) out of scope, exposing small
// interfaces that the lifecycle, bridge, callback, loader and manager packages
// build upon.
package core
