package egress

import (
	"fmt"
	"net/url"
)

// Endpoint is one SOCKS5 exit node with its credentials.
// Membership in the pool is the only health state an endpoint has:
// a misbehaving endpoint is removed, never individually re-added.
type Endpoint struct {
	Address  string `json:"proxy_address"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// URL renders the endpoint as a socks5:// URL with embedded credentials,
// suitable for http.Transport's Proxy function.
func (e Endpoint) URL() *url.URL {
	u := &url.URL{
		Scheme: "socks5",
		Host:   fmt.Sprintf("%s:%d", e.Address, e.Port),
	}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// Redacted renders the endpoint without credentials, for logs.
func (e Endpoint) Redacted() string {
	return fmt.Sprintf("socks5://%s:%d", e.Address, e.Port)
}
