package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/ballee/dbsync/internal/models"
)

// ConfigError reports an unresolvable secret. It names the variable but
// never carries the value.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing credential %s: set it in the environment or the credentials file", e.Variable)
}

// Provider resolves and persists connection secrets. Persisting is an
// explicit call, never a side effect of resolving.
type Provider interface {
	Resolve(env models.Environment) (string, error)
	Persist(key, value string) error
}

// Resolver resolves a secret cache-aside: credentials file first, then the
// process environment, then an interactive prompt when stdin is a terminal.
// Later-stage hits are written back to the file for reuse.
type Resolver struct {
	cacheFile string
	lookupEnv func(string) (string, bool)
	prompt    func(key string) (string, error)
}

func NewResolver(cacheFile string) *Resolver {
	return &Resolver{
		cacheFile: cacheFile,
		lookupEnv: os.LookupEnv,
		prompt:    promptHidden,
	}
}

// Key returns the variable name holding an environment's password.
func Key(env models.Environment) string {
	return strings.ToUpper(env.ID) + "_DB_PASSWORD"
}

func (r *Resolver) Resolve(env models.Environment) (string, error) {
	key := Key(env)

	if cached, err := godotenv.Read(r.cacheFile); err == nil {
		if v, ok := cached[key]; ok && v != "" {
			return v, nil
		}
	}

	if v, ok := r.lookupEnv(key); ok && v != "" {
		if err := r.Persist(key, v); err != nil {
			return "", fmt.Errorf("failed to cache credential %s: %w", key, err)
		}
		return v, nil
	}

	if r.prompt != nil {
		v, err := r.prompt(key)
		if err == nil && v != "" {
			if err := r.Persist(key, v); err != nil {
				return "", fmt.Errorf("failed to cache credential %s: %w", key, err)
			}
			return v, nil
		}
	}

	return "", &ConfigError{Variable: key}
}

// Persist appends a key to the credentials file. Existing entries are left
// untouched; the file is never rewritten wholesale.
func (r *Resolver) Persist(key, value string) error {
	if cached, err := godotenv.Read(r.cacheFile); err == nil {
		if _, ok := cached[key]; ok {
			return nil
		}
	}

	f, err := os.OpenFile(r.cacheFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		return fmt.Errorf("failed to append credential: %w", err)
	}
	return nil
}

func promptHidden(key string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "Enter %s: ", key)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
