package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubdomainFromHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "two level", host: "app.example.com", want: "app"},
		{name: "deep", host: "a.b.example.com", want: "a"},
		{name: "with port", host: "app.example.com:8443", want: "app"},
		{name: "bare host", host: "localhost", want: "localhost"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SubdomainFromHost(tt.host))
		})
	}
}

func TestSubdomainFromURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "https", raw: "https://app.example.com/path", want: "app"},
		{name: "http", raw: "http://app.example.com", want: "app"},
		{name: "relative path", raw: "/just/a/path", want: ""},
		{name: "garbage", raw: "://nope", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SubdomainFromURL(tt.raw))
		})
	}
}

func TestSubdomainURL(t *testing.T) {
	assert.Equal(t, "https://app.example.com/private",
		SubdomainURL("example.com", "app", "/private"))
	assert.Equal(t, "https://app.example.com/x",
		SubdomainURL("example.com", "app", "x"))
}
