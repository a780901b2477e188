package egress

import (
	"net"
	"net/http"
	"time"
)

// Connection-phase bounds on outbound provider calls. There is no
// end-to-end deadline: chat completions stream for as long as the
// provider keeps writing, and a whole-request timeout would sever
// long generations mid-relay.
const (
	dialTimeout           = 30 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 2 * time.Minute
)

// NewClient builds an HTTP client that egresses through the given
// endpoint, or directly when endpoint is nil.
func NewClient(endpoint *Endpoint) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
	if endpoint != nil {
		transport.Proxy = http.ProxyURL(endpoint.URL())
	}
	return &http.Client{Transport: transport}
}
