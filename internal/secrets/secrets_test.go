package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/efebarandurmaz/castgraph/internal/config"
)

func writeSecretsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("CASTGRAPH_NEO4J_PASSWORD", "from-env")
	p := NewEnvProvider(EnvPrefix)

	val, err := p.Get(context.Background(), KeyNeo4jPassword)
	if err != nil || val != "from-env" {
		t.Fatalf("expected from-env, got %q (%v)", val, err)
	}
	if _, err := p.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	path := writeSecretsFile(t, `{"neo4j_password": "from-file"}`)
	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatal(err)
	}
	if val, _ := p.Get(context.Background(), KeyNeo4jPassword); val != "from-file" {
		t.Errorf("expected from-file, got %q", val)
	}
	if _, err := p.Get(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", filepath.Join(t.TempDir(), "nope.json")},
		{"bad json", writeSecretsFile(t, "{not json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFileProvider(tt.path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestVaultProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/castgraph" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{"data":{"neo4j_password":"from-vault","port":7687}}}`))
	}))
	defer srv.Close()

	p, err := NewVaultProvider(VaultConfig{Address: srv.URL + "/", Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if val, err := p.Get(ctx, KeyNeo4jPassword); err != nil || val != "from-vault" {
		t.Fatalf("expected from-vault, got %q (%v)", val, err)
	}
	if val, _ := p.Get(ctx, "port"); val != "7687" {
		t.Errorf("expected non-string value formatted, got %q", val)
	}
	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	denied, _ := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "bad"})
	if _, err := denied.Get(ctx, KeyNeo4jPassword); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected vault error, got %v", err)
	}
}

func TestNewVaultProvider_Validation(t *testing.T) {
	if _, err := NewVaultProvider(VaultConfig{Token: "t"}); err == nil {
		t.Error("expected error without address")
	}
	if _, err := NewVaultProvider(VaultConfig{Address: "http://x"}); err == nil {
		t.Error("expected error without token")
	}
}

func TestManager_FallsBackToEnv(t *testing.T) {
	t.Setenv("CASTGRAPH_NEO4J_PASSWORD", "from-env")
	path := writeSecretsFile(t, `{"other": "x"}`)

	m, err := NewManager(config.SecretsConfig{Provider: "file", FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	if val, err := m.Get(context.Background(), KeyNeo4jPassword); err != nil || val != "from-env" {
		t.Fatalf("expected env fallback, got %q (%v)", val, err)
	}
}

func TestManager_Caches(t *testing.T) {
	t.Setenv("CASTGRAPH_NEO4J_PASSWORD", "first")
	m, err := NewManager(config.SecretsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := m.Get(ctx, KeyNeo4jPassword); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CASTGRAPH_NEO4J_PASSWORD", "second")
	if val, _ := m.Get(ctx, KeyNeo4jPassword); val != "first" {
		t.Errorf("expected cached value, got %q", val)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(config.SecretsConfig{Provider: "keyring"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps configured password", func(t *testing.T) {
		t.Setenv("CASTGRAPH_NEO4J_PASSWORD", "from-env")
		cfg := config.Default()
		cfg.Neo4j.Password = "explicit"
		if err := Resolve(ctx, cfg); err != nil {
			t.Fatal(err)
		}
		if cfg.Neo4j.Password != "explicit" {
			t.Errorf("expected explicit password kept, got %q", cfg.Neo4j.Password)
		}
	})

	t.Run("fills from file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Secrets.Provider = "file"
		cfg.Secrets.FilePath = writeSecretsFile(t, `{"neo4j_password": "from-file"}`)
		if err := Resolve(ctx, cfg); err != nil {
			t.Fatal(err)
		}
		if cfg.Neo4j.Password != "from-file" {
			t.Errorf("expected from-file, got %q", cfg.Neo4j.Password)
		}
	})

	t.Run("missing stays empty", func(t *testing.T) {
		cfg := config.Default()
		if err := Resolve(ctx, cfg); err != nil {
			t.Fatal(err)
		}
		if cfg.Neo4j.Password != "" {
			t.Errorf("expected empty password, got %q", cfg.Neo4j.Password)
		}
	})

	t.Run("bad provider config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Secrets.Provider = "vault"
		cfg.Secrets.VaultToken = ""
		if err := Resolve(ctx, cfg); err == nil {
			t.Fatal("expected error")
		}
	})
}
