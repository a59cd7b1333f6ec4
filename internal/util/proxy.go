// Package util holds outbound-HTTP helpers shared by page and feed fetching
package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// ProxyFunc selects the proxy for an outbound request, as http.Transport.Proxy
type ProxyFunc func(*http.Request) (*url.URL, error)

// NewProxyFunc returns the proxy selector for outbound requests. Explicit
// proxies win per scheme; anything else falls back to the environment.
func NewProxyFunc(httpProxy, httpsProxy string) (ProxyFunc, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", raw)
		}
		return u, nil
	}

	httpURL, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	httpsURL, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsURL != nil {
			return httpsURL, nil
		}
		if httpURL != nil {
			return httpURL, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}
