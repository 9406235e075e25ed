// Package secrets resolves credentials that are left out of configuration
// files, from the environment, a JSON file or HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/efebarandurmaz/castgraph/internal/config"
)

// Keys looked up by Resolve.
const (
	KeyNeo4jPassword = "neo4j_password"
)

// EnvPrefix is prepended to upper-cased keys by the env provider.
const EnvPrefix = "CASTGRAPH_"

// ErrNotFound is returned when no provider holds a key.
var ErrNotFound = errors.New("secret not found")

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Manager reads from a primary provider and falls back to the environment.
// Values are cached for the life of the manager.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds a manager for the configured provider.
func NewManager(cfg config.SecretsConfig) (*Manager, error) {
	env := NewEnvProvider(EnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "", "env":
		primary = env
	case "file":
		p, err := NewFileProvider(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("file provider: %w", err)
		}
		primary = p
	case "vault":
		p, err := NewVaultProvider(VaultConfig{
			Address:    cfg.VaultAddr,
			Token:      cfg.VaultToken,
			MountPath:  cfg.VaultMount,
			SecretPath: cfg.VaultPath,
		})
		if err != nil {
			return nil, fmt.Errorf("vault provider: %w", err)
		}
		primary = p
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	m := &Manager{primary: primary, cache: make(map[string]string)}
	if primary != env {
		m.fallback = env
	}
	return m, nil
}

// Get returns the value for key from the primary provider or the fallback.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		if val, err := p.Get(ctx, key); err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Resolve fills empty credentials in cfg. A credential that no provider holds
// stays empty.
func Resolve(ctx context.Context, cfg *config.Config) error {
	if cfg.Neo4j.Password != "" {
		return nil
	}
	m, err := NewManager(cfg.Secrets)
	if err != nil {
		return err
	}
	val, err := m.Get(ctx, KeyNeo4jPassword)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg.Neo4j.Password = val
	return nil
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: env %s", ErrNotFound, envKey)
}
