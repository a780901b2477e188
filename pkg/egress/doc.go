// Package egress manages the pool of rotating SOCKS5 exit nodes.
//
// The pool is refreshed from a remote proxy-list service, persisted to
// the backing store, and consumed by the request pipeline: a proxied
// request picks a random endpoint, and endpoints that fail or get rate
// limited are evicted until the next full refresh.
package egress
