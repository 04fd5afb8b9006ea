package test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTest is a single request against a handler and the response expected from it.
// Empty expectations are not checked.
type HTTPTest struct {
	Name string

	Method    string
	URL       string
	ReqBody   io.Reader
	ReqHeader map[string]string

	Code        int
	ResBody     string
	ResJSON     string
	ResHeader   map[string]string
	ResContains string
}

func (test *HTTPTest) request(t *testing.T) *http.Request {
	req, err := http.NewRequest(test.Method, test.URL, test.ReqBody)
	require.NoError(t, err)
	for k, v := range test.ReqHeader {
		req.Header.Set(k, v)
	}
	return req
}

func (test *HTTPTest) check(t *testing.T, code int, header http.Header, body []byte) {
	t.Helper()
	assert.Equal(t, test.Code, code, "unexpected status, body: %s", body)
	for k, v := range test.ResHeader {
		assert.Equal(t, v, header.Get(k), "header %s", k)
	}
	if test.ResBody != "" {
		assert.Equal(t, test.ResBody, string(body))
	}
	if test.ResJSON != "" {
		AssertEqualJSON(t, []byte(test.ResJSON), body)
	}
	if test.ResContains != "" {
		assert.Contains(t, string(body), test.ResContains)
	}
}

// Run serves the request in-process with handler.
func (test *HTTPTest) Run(handler http.Handler, t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	req := test.request(t)
	req.Host = "studio.test"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	test.check(t, rr.Code, rr.Header(), rr.Body.Bytes())
	return rr
}

// RunHTTP sends the request over the network, for URLs of a running server.
func (test *HTTPTest) RunHTTP(t *testing.T) *http.Response {
	t.Helper()
	res, err := http.DefaultClient.Do(test.request(t))
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	test.check(t, res.StatusCode, res.Header, body)
	return res
}
