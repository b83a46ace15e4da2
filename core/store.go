package core

import "context"

// Store is the ledger's persistence boundary. Transaction runs fn against a
// transactional view; returning an error from fn discards every write made
// through that view.
type Store interface {
	BankStore
	UserStore
	PositionStore
	OperationStore
	AssetStore

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
