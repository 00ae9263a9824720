package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Second)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within budget", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request allowed, want rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other IP rejected")
	}

	// Sub-interval trickle does not refill.
	now = now.Add(900 * time.Millisecond)
	if rl.Allow("10.0.0.1") {
		t.Error("allowed before a full interval passed")
	}

	now = now.Add(200 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Error("rejected after refill")
	}
}

func TestRateLimit_KeysOnHost(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, addr := range []string{"192.0.2.7:50001", "192.0.2.7:50002"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request from %s: status = %d, want %d", addr, rr.Code, want)
		}
	}
}

// An email typed at full speed sends one availability check per
// character; none may be refused, and the site budget stays untouched.
func TestRateLimitByPath_KeystrokeBudget(t *testing.T) {
	site := NewRateLimiter(10, time.Second)
	keystrokes := NewRateLimiter(50, time.Second)
	handler := RateLimitByPath(site, map[string]*RateLimiter{
		"/registro/disponibilidad": keystrokes,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	typed := "mariana.lopez@gmail.com"
	for i := range typed {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/registro/disponibilidad", strings.NewReader(typed[:i+1])))
		if rr.Code != http.StatusOK {
			t.Fatalf("keystroke %d: status = %d", i+1, rr.Code)
		}
	}

	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/registro", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("page request %d: status = %d", i+1, rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/registro", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("site budget: status = %d, want 429", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "img-src 'self' data:") {
		t.Errorf("CSP %q does not allow data: signature images", csp)
	}
}

func TestCSRF(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	handler := CSRF(key, false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"safe method passes", "GET", "", http.StatusNoContent},
		{"form post without token rejected", "POST", "application/x-www-form-urlencoded", http.StatusForbidden},
		{"json post exempt", "POST", "application/json", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/login", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("inner"), mw("outer"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order = %s", got)
	}
}
