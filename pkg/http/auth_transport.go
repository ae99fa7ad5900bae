package http

import "net/http"

// headerTransport fills request headers the caller left unset.
type headerTransport struct {
	headers   http.Header
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqCopy *http.Request
	for key, values := range t.headers {
		if req.Header.Get(key) != "" {
			continue
		}
		if reqCopy == nil {
			reqCopy = req.Clone(req.Context())
		}
		reqCopy.Header[key] = values
	}
	if reqCopy == nil {
		return t.transport.RoundTrip(req)
	}
	return t.transport.RoundTrip(reqCopy)
}

// WithAuthToken sends a bearer token unless the request carries its own
// Authorization header. An empty token adds nothing.
func WithAuthToken(token string) HttpOpts {
	if token == "" {
		return func(*httpConfig) {}
	}
	return WithDefaultHeader("Authorization", "Bearer "+token)
}

// WithDefaultHeader sets key on every request that does not set it already.
func WithDefaultHeader(key, value string) HttpOpts {
	headers := http.Header{}
	headers.Set(key, value)
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &headerTransport{headers: headers, transport: rt}
	})
}
