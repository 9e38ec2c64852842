package googleauth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestRetry(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"success", nil, 1, false},
		{"rate limited then ok", []error{&googleapi.Error{Code: 429}}, 2, false},
		{"server errors exhaust retries", []error{&googleapi.Error{Code: 503}, &googleapi.Error{Code: 500}, &googleapi.Error{Code: 502}, &googleapi.Error{Code: 500}}, 4, true},
		{"bad request is not retried", []error{&googleapi.Error{Code: 400}}, 1, true},
		{"wrapped error", []error{fmt.Errorf("read: %w", &googleapi.Error{Code: 500})}, 2, false},
		{"plain error", []error{errors.New("boom")}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), p, "test", func(context.Context) error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})
			if calls != tt.wantCalls || (err != nil) != tt.wantErr {
				t.Fatalf("calls=%d err=%v", calls, err)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}, "test", func(context.Context) error {
		return &googleapi.Error{Code: 503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil || got.RefreshToken != "r" {
		t.Fatalf("load = %+v, %v", got, err)
	}
}

func TestClientOptionsRequiresCredentials(t *testing.T) {
	_, err := ClientOptions(context.Background(), Credentials{})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	opts, err := ClientOptions(context.Background(), Credentials{ServiceAccountJSON: `{"type":"service_account"}`}, "scope")
	if err != nil || len(opts) != 2 {
		t.Fatalf("service account options = %v, %v", opts, err)
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		name string
		c    Credentials
		want bool
	}{
		{"empty", Credentials{}, false},
		{"service account file", Credentials{ServiceAccountFile: "sa.json"}, true},
		{"oauth without token", Credentials{OAuthClientFile: "client.json"}, false},
		{"oauth with token", Credentials{OAuthClientJSON: "{}", OAuthTokenFile: "token.json"}, true},
	}
	for _, tt := range tests {
		if got := tt.c.Configured(); got != tt.want {
			t.Fatalf("%s: Configured = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOAuthConfig(t *testing.T) {
	if _, err := OAuthConfig(Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	client := `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	cfg, err := OAuthConfig(Credentials{OAuthClientJSON: client}, "scope-a", "scope-b")
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "id" || len(cfg.Scopes) != 2 {
		t.Fatalf("config = %+v", cfg)
	}
}
