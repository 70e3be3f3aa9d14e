package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookedge/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "platform header wins over forwarded-for",
			headers: map[string]string{"X-Vercel-Forwarded-For": "203.0.113.9", "X-Forwarded-For": "198.51.100.1"},
			remote:  "10.0.0.1:443",
			want:    "203.0.113.9",
		},
		{
			name:    "forwarded-for first hop",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2, 10.0.0.3"},
			remote:  "10.0.0.1:443",
			want:    "198.51.100.1",
		},
		{
			name:    "cloudflare header",
			headers: map[string]string{"CF-Connecting-IP": "192.0.2.7"},
			remote:  "10.0.0.1:443",
			want:    "192.0.2.7",
		},
		{
			name:   "remote addr fallback strips port",
			remote: "192.0.2.8:51234",
			want:   "192.0.2.8",
		},
		{
			name:   "ipv6 remote addr",
			remote: "[2001:db8::1]:443",
			want:   "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r, DefaultTrustedIPHeaders))
		})
	}
}

func TestClientMetadataMiddleware(t *testing.T) {
	var gotIP, gotLabel string
	handler := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotLabel = requestcontext.DeviceLabel(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")
	r.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.9", gotIP)
	assert.Contains(t, gotLabel, "Chrome")
	assert.Contains(t, gotLabel, "on")
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "Unknown Device", DeviceLabel(""))
	assert.Equal(t, "Unknown Device", DeviceLabel("???"))
}
