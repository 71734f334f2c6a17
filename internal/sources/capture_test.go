package sources

import (
	"encoding/base64"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestParseTokenBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{name: "plain", body: "param=abc123", want: "abc123", wantOK: true},
		{name: "escaped", body: "param=a%2Bb%3D", want: "a+b=", wantOK: true},
		{name: "extra fields", body: "x=1&param=tok&y=2", want: "tok", wantOK: true},
		{name: "empty", body: "", wantOK: false},
		{name: "no param", body: "foo=bar", wantOK: false},
		{name: "blank param", body: "param=", wantOK: false},
		{name: "malformed", body: "param=%zz", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseTokenBody(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte("param=tok"))

	tests := []struct {
		name   string
		req    *network.Request
		wantOK bool
	}{
		{
			name:   "base64 entry",
			req:    &network.Request{Method: "POST", URL: "https://www.bonbast.com/json", PostDataEntries: []*network.PostDataEntry{{Bytes: encoded}}},
			wantOK: true,
		},
		{
			name:   "raw entry",
			req:    &network.Request{Method: "POST", URL: "https://www.bonbast.com/json", PostDataEntries: []*network.PostDataEntry{{Bytes: "param=tok"}}},
			wantOK: true,
		},
		{
			name: "GET ignored",
			req:  &network.Request{Method: "GET", URL: "https://www.bonbast.com/json"},
		},
		{
			name: "other endpoint",
			req:  &network.Request{Method: "POST", URL: "https://www.bonbast.com/archive", PostDataEntries: []*network.PostDataEntry{{Bytes: encoded}}},
		},
		{
			name: "no body",
			req:  &network.Request{Method: "POST", URL: "https://www.bonbast.com/json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tokenFromRequest(tt.req)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "tok", got)
			}
		})
	}
}

func TestTokenBoxKeepsFirst(t *testing.T) {
	t.Parallel()

	var box tokenBox
	_, ok := box.get()
	assert.False(t, ok)

	box.set("first")
	box.set("second")
	got, ok := box.get()
	assert.True(t, ok)
	assert.Equal(t, "first", got)
}

func TestCookieHeaderSorted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", cookieHeader(nil))
	assert.Equal(t, "a=1; b=2; c=3", cookieHeader(map[string]string{"c": "3", "a": "1", "b": "2"}))
}
