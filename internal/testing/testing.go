// package testing provides shared test doubles.
package testing

import "net/http"

// MockRoundTripper implements [http.RoundTripper] returning a canned
// response or error for every request.
type MockRoundTripper struct {
	Response *http.Response
	Err      error
	Requests []*http.Request
}

// NewMockRoundTripper creates a round tripper that returns resp and err.
func NewMockRoundTripper(resp *http.Response, err error) *MockRoundTripper {
	return &MockRoundTripper{Response: resp, Err: err}
}

// RoundTrip records the request and returns the canned result.
func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}
