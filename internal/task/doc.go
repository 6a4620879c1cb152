// Package task implements the asynchronous beautification pipeline: the
// idempotent task state machine writer, the scheduler that claims pending
// work, the worker that executes one task end to end, the timeout watchdog,
// the expiry sweeper, and the polling runner that drives them.
//
// The task store is the single source of truth; components communicate
// through it rather than through in-process shared state. At most one task
// is claimed and executed per dequeue cycle.
package task
