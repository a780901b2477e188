// Package gateway implements the HTTP front of the relay: the
// request pipeline that resolves a provider and an egress route from
// the URL, applies pooled credentials, forwards to the upstream API
// and relays the response back, plus the admin endpoints for
// credential sync and runtime toggles.
//
// Inbound paths follow the pattern /{flag}/{provider}/v1/..., where
// flag selects the egress route: "x" goes direct, "o" goes through a
// rotating SOCKS5 proxy from the egress pool.
package gateway
