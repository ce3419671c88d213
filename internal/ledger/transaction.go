// =============================================================================
// Statement Normalizer - Transaction Model
// =============================================================================
//
// A Transaction is one normalized statement line. It is an immutable value:
// fields are only readable through getters, and the only way to obtain one
// is NewTransaction, which validates the required fields.
//
// AMOUNT SIGN CONVENTION:
//   Negative amounts are debits (money leaving the account), positive amounts
//   are credits.
//
// =============================================================================

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/statement-normalizer/internal/fields"
)

var (
	// ErrMissingDate is returned when a transaction has no valid date.
	ErrMissingDate = errors.New("transaction date is required")

	// ErrMissingDescription is returned when a transaction has no description.
	ErrMissingDescription = errors.New("transaction description is required")

	// ErrMissingBank is returned when a transaction has no bank name.
	ErrMissingBank = errors.New("transaction bank is required")
)

// Entry holds the values a Transaction is built from.
type Entry struct {
	Date        civil.Date
	Description string
	Amount      decimal.Decimal
	Balance     decimal.NullDecimal
	Category    string
	Reference   string
	Account     string
	Bank        string
}

// Transaction is a validated, immutable statement line.
type Transaction struct {
	date        civil.Date
	description string
	amount      decimal.Decimal
	balance     decimal.NullDecimal
	category    string
	reference   string
	account     string
	bank        string
}

// NewTransaction validates an entry and returns the transaction.
//
// The description is cleaned (trimmed, whitespace collapsed) before the
// non-empty check, so a description made only of spaces is rejected.
func NewTransaction(e Entry) (Transaction, error) {
	if !e.Date.IsValid() {
		return Transaction{}, ErrMissingDate
	}
	desc := fields.CleanDescription(e.Description)
	if desc == "" {
		return Transaction{}, ErrMissingDescription
	}
	bank := fields.CleanDescription(e.Bank)
	if bank == "" {
		return Transaction{}, ErrMissingBank
	}

	return Transaction{
		date:        e.Date,
		description: desc,
		amount:      e.Amount,
		balance:     e.Balance,
		category:    fields.CleanDescription(e.Category),
		reference:   fields.CleanDescription(e.Reference),
		account:     fields.CleanDescription(e.Account),
		bank:        bank,
	}, nil
}

// Date returns the transaction date.
func (t Transaction) Date() civil.Date { return t.date }

// Description returns the cleaned description.
func (t Transaction) Description() string { return t.description }

// Amount returns the signed amount; negative is a debit.
func (t Transaction) Amount() decimal.Decimal { return t.amount }

// Balance returns the running balance and whether the statement had one.
func (t Transaction) Balance() (decimal.Decimal, bool) {
	return t.balance.Decimal, t.balance.Valid
}

// Category returns the category, empty when unknown.
func (t Transaction) Category() string { return t.category }

// Reference returns the bank reference, empty when absent.
func (t Transaction) Reference() string { return t.reference }

// Account returns the account identifier, empty when absent.
func (t Transaction) Account() string { return t.account }

// Bank returns the institution name.
func (t Transaction) Bank() string { return t.bank }

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool { return t.amount.IsNegative() }

// Entry returns the transaction's values, for building a modified copy.
func (t Transaction) Entry() Entry {
	return Entry{
		Date:        t.date,
		Description: t.description,
		Amount:      t.amount,
		Balance:     t.balance,
		Category:    t.category,
		Reference:   t.reference,
		Account:     t.account,
		Bank:        t.bank,
	}
}

// String renders a one-line summary, for logs.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s", t.date, t.amount.String(), t.description)
}

// =============================================================================
// JSON
// =============================================================================

// jsonTransaction is the wire form. Amounts are JSON numbers written from the
// exact decimal text; dates are ISO-8601.
type jsonTransaction struct {
	Date        civil.Date   `json:"date"`
	Description string       `json:"description"`
	Amount      json.Number  `json:"amount"`
	Balance     *json.Number `json:"balance,omitempty"`
	Category    string       `json:"category,omitempty"`
	Reference   string       `json:"reference,omitempty"`
	Account     string       `json:"account,omitempty"`
	Bank        string       `json:"bank"`
}

// MarshalJSON implements json.Marshaler.
func (t Transaction) MarshalJSON() ([]byte, error) {
	jt := jsonTransaction{
		Date:        t.date,
		Description: t.description,
		Amount:      json.Number(t.amount.String()),
		Category:    t.category,
		Reference:   t.reference,
		Account:     t.account,
		Bank:        t.bank,
	}
	if t.balance.Valid {
		b := json.Number(t.balance.Decimal.String())
		jt.Balance = &b
	}
	return json.Marshal(jt)
}

// UnmarshalJSON implements json.Unmarshaler and validates like NewTransaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var jt jsonTransaction
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(jt.Amount.String())
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	e := Entry{
		Date:        jt.Date,
		Description: jt.Description,
		Amount:      amount,
		Category:    jt.Category,
		Reference:   jt.Reference,
		Account:     jt.Account,
		Bank:        jt.Bank,
	}
	if jt.Balance != nil {
		b, err := decimal.NewFromString(jt.Balance.String())
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		e.Balance = decimal.NewNullDecimal(b)
	}
	tx, err := NewTransaction(e)
	if err != nil {
		return err
	}
	*t = tx
	return nil
}
