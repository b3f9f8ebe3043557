package accounts

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Account is one credential pair resolvable by key. The engine passes it to
// the page capability on login and does not interpret it further.
type Account struct {
	Key        string `yaml:"-"`
	Identifier string `yaml:"identifier"`
	Secret     string `yaml:"secret"`
	Role       string `yaml:"role,omitempty"`
}

// UnknownAccountError reports a login referencing a key absent from the table.
type UnknownAccountError struct {
	Key string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account: %s", e.Key)
}

// Table maps account keys to credentials. A table is built from a scenario's
// embedded accounts section, optionally overridden by an external file.
type Table struct {
	accounts map[string]Account
}

// NewTable builds a table from a key → account map. Keys on the accounts are
// filled in from the map keys.
func NewTable(accts map[string]Account) *Table {
	t := &Table{accounts: make(map[string]Account, len(accts))}
	for key, a := range accts {
		a.Key = key
		t.accounts[key] = a
	}
	return t
}

// Load reads an accounts YAML file: a mapping from key to credentials.
// Both identifier/secret and the email/password spellings are accepted,
// and ${VAR} references expand from the environment, same as in
// scenario and config files.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts %s: %w", path, err)
	}

	var raw map[string]struct {
		Identifier string `yaml:"identifier"`
		Email      string `yaml:"email"`
		Secret     string `yaml:"secret"`
		Password   string `yaml:"password"`
		Role       string `yaml:"role"`
	}
	if err := yaml.Unmarshal(expandEnv(data), &raw); err != nil {
		return nil, fmt.Errorf("parse accounts %s: %w", path, err)
	}

	accts := make(map[string]Account, len(raw))
	for key, r := range raw {
		a := Account{Key: key, Identifier: r.Identifier, Secret: r.Secret, Role: r.Role}
		if a.Identifier == "" {
			a.Identifier = r.Email
		}
		if a.Secret == "" {
			a.Secret = r.Password
		}
		accts[key] = a
	}
	return NewTable(accts), nil
}

var envPattern = regexp.MustCompile(`\$\{[^}]+\}`)

func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Merge overlays other onto t. Keys present in other win.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for key, a := range other.accounts {
		t.accounts[key] = a
	}
}

// Resolve looks up an account by key.
func (t *Table) Resolve(key string) (Account, error) {
	if t != nil {
		if a, ok := t.accounts[key]; ok {
			return a, nil
		}
	}
	return Account{}, &UnknownAccountError{Key: key}
}

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	if t == nil {
		return false
	}
	_, ok := t.accounts[key]
	return ok
}

// Keys returns all account keys in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.accounts))
	for k := range t.accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of accounts in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.accounts)
}
