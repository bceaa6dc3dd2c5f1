package nats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

func TestTLSConfig(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "no tls material", cfg: Config{URL: "nats://localhost:4222"}, wantNil: true},
		{name: "cert without key", cfg: Config{CertFile: "client.pem"}, wantErr: true},
		{name: "key without cert", cfg: Config{KeyFile: "client.key"}, wantErr: true},
		{name: "missing ca file", cfg: Config{CAFile: filepath.Join(dir, "missing.pem")}, wantErr: true},
		{name: "unparseable ca", cfg: Config{CAFile: garbage}, wantErr: true},
		{name: "missing key pair", cfg: Config{CertFile: filepath.Join(dir, "c.pem"), KeyFile: filepath.Join(dir, "k.pem")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := tlsConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantNil && conf != nil {
				t.Errorf("expected nil config, got %+v", conf)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	log := logger.Nop()

	base, err := options(Config{URL: "nats://localhost:4222"}, log)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	withToken, err := options(Config{URL: "nats://localhost:4222", Token: "s3cret"}, log)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(withToken) != len(base)+1 {
		t.Errorf("token should add one option: %d vs %d", len(withToken), len(base))
	}

	if _, err := options(Config{CertFile: "only-cert.pem"}, log); err == nil {
		t.Error("expected error for incomplete client certificate")
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(Config{}, logger.Nop()); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestZeroClient(t *testing.T) {
	c := &Client{logger: logger.Nop()}
	if c.IsConnected() {
		t.Error("zero client reports connected")
	}
	c.Close()
}
