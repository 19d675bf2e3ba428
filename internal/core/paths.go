package core

import "path"

// Collection names under an account document.
const (
	AccountsCollection     = "accounts"
	TransactionsCollection = "transactions"
	PaymentsCollection     = "payments"
	TransfersCollection    = "transfers"
	InvestmentsCollection  = "investments"
	ExportsCollection      = "exports"
)

// AccountPath returns "accounts/{id}".
func AccountPath(accountID string) string {
	return path.Join(AccountsCollection, accountID)
}

// CollectionPath returns "accounts/{id}/{collection}".
func CollectionPath(accountID, collection string) string {
	return path.Join(AccountsCollection, accountID, collection)
}

// DocumentPath returns "accounts/{id}/{collection}/{docID}".
func DocumentPath(accountID, collection, docID string) string {
	return path.Join(AccountsCollection, accountID, collection, docID)
}
