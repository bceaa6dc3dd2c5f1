package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetUserID(r.Context())))
}

func signed(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: []string{"inbox:write"},
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth(t *testing.T) {
	const secret = "s3cret"

	tests := []struct {
		name     string
		secret   string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{"disabled", "", "", "", http.StatusOK, ""},
		{"missing header", secret, "", "", http.StatusUnauthorized, ""},
		{"malformed header", secret, "Token abc", "", http.StatusUnauthorized, ""},
		{"bad signature", secret, "Bearer " + signed(t, "other", "u1"), "", http.StatusUnauthorized, ""},
		{"valid header", secret, "Bearer " + signed(t, secret, "u1"), "", http.StatusOK, "u1"},
		{"valid query token", secret, "", signed(t, secret, "u2"), http.StatusOK, "u2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/inbox"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Auth(tt.secret)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	const secret = "s3cret"
	h := Auth(secret)(RequireScope(secret, "inbox:admin")(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, secret, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "corr-1" || rec.Header().Get("X-Correlation-ID") != "corr-1" {
		t.Errorf("correlation id = %q / %q", seen, rec.Header().Get("X-Correlation-ID"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(okHandler))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"chat id ok", ValidateChatID("!abc:beeper.local"), false},
		{"chat id blank", ValidateChatID("  "), true},
		{"chat id too long", ValidateChatID(strings.Repeat("x", 600)), true},
		{"text ok", ValidateMessageText("hello"), false},
		{"text blank", ValidateMessageText(" \n"), true},
		{"text invalid utf8", ValidateMessageText("\xff\xfe"), true},
		{"draft empty ok", ValidateDraft(""), false},
		{"draft too long", ValidateDraft(strings.Repeat("a", 100001)), true},
		{"key ok", ValidateKey("j"), false},
		{"key blank", ValidateKey(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", tt.err, tt.wantErr)
			}
		})
	}
}
