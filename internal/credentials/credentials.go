// Package credentials holds the account table handed to a download run.
package credentials

import (
	"fmt"
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// Secret is an account password. Its formatting and logging forms are
// redacted; call Reveal to get the raw value.
type Secret string

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// LogValue keeps secrets out of slog output.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

func (s Secret) Reveal() string { return string(s) }

func (s Secret) IsZero() bool { return s == "" }

// Account is one downloader login.
type Account struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Secret Secret `json:"-"`
}

// DisplayName returns the label, or the id when no label is set.
func (a Account) DisplayName() string {
	if a.Label != "" {
		return a.Label
	}
	return a.ID
}

// Table maps account ids to accounts. It is read-only after construction.
type Table struct {
	order []string
	byID  map[string]Account
}

// NewTable validates and indexes accounts, preserving their order.
func NewTable(accounts []Account) (*Table, error) {
	t := &Table{byID: make(map[string]Account, len(accounts))}
	for i, a := range accounts {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("account %d: id is empty", i)
		}
		if _, dup := t.byID[a.ID]; dup {
			return nil, fmt.Errorf("account %q defined twice", a.ID)
		}
		t.byID[a.ID] = a
		t.order = append(t.order, a.ID)
	}
	return t, nil
}

// Lookup returns the account for id. A nil table has no accounts.
func (t *Table) Lookup(id string) (Account, bool) {
	if t == nil {
		return Account{}, false
	}
	a, ok := t.byID[strings.TrimSpace(id)]
	return a, ok
}

// Accounts returns every account in configuration order.
func (t *Table) Accounts() []Account {
	if t == nil {
		return nil
	}
	out := make([]Account, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}
