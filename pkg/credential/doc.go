// Package credential manages provider API keys and their usage state.
//
// Each provider owns a Pool of individually lock-guarded entries. Requests
// pick the least recently used valid key, and upstream status codes feed
// back into the entry's health flags (valid, cooldown) and quota counter.
package credential
