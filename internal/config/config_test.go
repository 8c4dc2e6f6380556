package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jkaninda/aiom/internal/storage"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "aiom.yaml", `
server:
  listen_addr: ":9090"
odoo:
  url: https://erp.example.com
  database: prod
  username: svc@example.com
  api_key: secret
rate_limit:
  requests_per_minute: 60
  burst_size: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Odoo.Database != "prod" {
		t.Errorf("database = %q", cfg.Odoo.Database)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("rpm = %d", cfg.RateLimit.RequestsPerMinute)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "aiom.json", `{"server":{"listen_addr":":7070"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != ":7070" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
}

func TestValidateOdooRequiresCredentials(t *testing.T) {
	path := writeConfig(t, "aiom.yaml", `
odoo:
  url: https://erp.example.com
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "odoo.database") {
		t.Errorf("err = %v, want odoo.database validation failure", err)
	}
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "aiom.yaml", `
storage:
  driver: postgres
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "storage.postgres.dsn") {
		t.Errorf("err = %v, want dsn validation failure", err)
	}
}

func TestStorageConfigDefaultsToSQLite(t *testing.T) {
	path := writeConfig(t, "aiom.yaml", `data_dir: /tmp/aiom-test`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sc := cfg.StorageConfig()
	if sc.Driver != storage.DriverSQLite {
		t.Errorf("driver = %q", sc.Driver)
	}
	if sc.SQLite.Path != filepath.Join("/tmp/aiom-test", "aiom.db") {
		t.Errorf("path = %q", sc.SQLite.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIOM_LISTEN_ADDR", ":6060")
	t.Setenv("ODOO_API_KEY", "from-env")

	path := writeConfig(t, "aiom.yaml", `
odoo:
  url: https://erp.example.com
  database: prod
  username: svc@example.com
  api_key: from-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != ":6060" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Odoo.APIKey != "from-env" {
		t.Errorf("api key = %q", cfg.Odoo.APIKey)
	}
}
