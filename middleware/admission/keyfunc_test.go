package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// A chave extraída aqui é a identidade de cota do cliente; os casos cobrem a
// precedência: header dedicado > X-Forwarded-For (se confiável) > host do
// RemoteAddr.
func TestDefaultKeyFunc(t *testing.T) {
	cases := []struct {
		name       string
		keyHeader  string
		trustXFF   bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "dedicated header wins and is trimmed",
			keyHeader:  "X-Client",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Client": " client-123 ", "X-Forwarded-For": "1.2.3.4"},
			want:       "client-123",
		},
		{
			name:       "trusted forwarded chain uses the first hop",
			trustXFF:   true,
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			want:       "1.2.3.4",
		},
		{
			name:       "untrusted forwarded chain is ignored",
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "10.0.0.9",
		},
		{
			name:       "remote host is the fallback",
			remoteAddr: "10.0.0.9:5555",
			want:       "10.0.0.9",
		},
		{
			name:       "portless remote address is kept whole",
			remoteAddr: "10.0.0.9",
			want:       "10.0.0.9",
		},
		{
			name: "empty remote address",
			want: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn := DefaultKeyFunc(tc.keyHeader, tc.trustXFF)

			r := httptest.NewRequest(http.MethodGet, "http://example/report", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}

			if got := fn(r); got != tc.want {
				t.Fatalf("expected key %q, got %q", tc.want, got)
			}
		})
	}
}
