// Package providers defines the fixed, compiled-in set of upstream LLM
// API adapters the gateway can front.
//
// Each adapter describes one upstream: its models and chat endpoints,
// the header and body rewriting it requires, how its responses are
// relayed, its credential pool, and an optional daily quota-reset
// clock. The set is closed on purpose; adding a provider is a code
// change, not a runtime registration.
package providers
