package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntrySide string

const (
	EntrySideDebit  EntrySide = "debit"
	EntrySideCredit EntrySide = "credit"
)

// LedgerEntry is one leg of a double-entry posting. Legs are written in
// matched debit/credit pairs of equal amount sharing a PostingID, and are
// immutable once written. The sum of all entries for an account, partitioned
// by asset, is that account's balance.
type LedgerEntry struct {
	ID        string
	PostingID string
	Account   string
	Side      EntrySide
	Amount    decimal.Decimal
	Asset     string
	Memo      string
	RefType   string
	RefID     string
	CreatedAt time.Time
}
