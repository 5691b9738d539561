// Package rule defines the core domain model of the rulekit automation
// engine: rules, their trigger/condition/action modules, typed
// configuration values with declared parameter metadata, rule templates,
// the rule status state machine and the classified error type shared by
// the registry and the engine.
//
// A Rule is a named, tagged collection of modules plus configuration.
// Modules are owned exclusively by their rule and have no independent
// lifecycle. Module ids are unique within a rule and must not contain
// a dot, because `<moduleId>.<outputName>` strings wire module inputs
// to the outputs of other modules at execution time.
package rule
