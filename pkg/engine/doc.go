// Package engine executes rules. It subscribes to the registry, binds
// module handlers to each rule's triggers, conditions and actions, and
// tracks every rule through the uninitialized/idle/running/disabled
// status machine.
//
// Each active rule owns a callback that its triggers fire into. Trigger
// firings are queued and processed strictly one at a time per rule, in
// submission order, while different rules run fully independently. The
// dispatcher behind the queues is configurable: a dedicated goroutine
// per rule for maximum isolation, or a shared worker pool with per-rule
// serial chaining when goroutine-per-rule is too costly.
package engine
