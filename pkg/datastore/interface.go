package datastore

import "github.com/LaTsa99/LaTsaServer/pkg/model"

// Store defines the persistence contract for the three durable collections:
// registered accounts, chat history, and the IP blacklist. Each collection is
// loaded once at server start and written back at server stop; the three are
// independent, so a failure loading one must not block the others.
//
// The default implementation is SQLite-backed; in-memory implementations can
// be substituted for tests.
type Store interface {
	AccountProvider
	HistoryProvider
	BlacklistProvider

	Close() error
}

// Compile-time check: *SQL implements Store.
var _ Store = (*SQL)(nil)

type AccountProvider interface {
	LoadAccounts() ([]model.Account, error)
	ReplaceAccounts([]model.Account) error
}

type HistoryProvider interface {
	LoadHistory() ([]string, error)
	ReplaceHistory([]string) error
}

type BlacklistProvider interface {
	LoadBlacklist() ([]string, error)
	ReplaceBlacklist([]string) error
}
