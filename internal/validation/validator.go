// =============================================================================
// Statement Normalizer - Ledger Validation
// =============================================================================
//
// This module runs consistency checks over a ledger after it has been built.
// Every transaction is already valid on its own; these checks look across
// transactions for signs that the export was read wrongly or is incomplete:
//   - Running balance continuity (when the export carries balances)
//   - Duplicate transactions
//   - Zero amounts
//   - Dates in the future
//
// ERROR HANDLING:
//   - Issues are collected, not returned as they are found
//   - Each issue names the check, the transaction index and its source date
//   - The built-in checks report warnings; custom validators report errors
//   - TreatWarningsAsErrors makes any warning invalidate the ledger
//
// CUSTOMIZATION:
//   - Register institution-specific rules in Options.CustomValidators
//   - Adjust BalanceTolerance for exports that round balances
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Check names.
const (
	CheckBalance   = "balance_continuity"
	CheckDuplicate = "duplicate"
	CheckZero      = "zero_amount"
	CheckFuture    = "future_date"
	CheckCustom    = "custom"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError is a single issue found in a ledger.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Check is the name of the check that raised the issue.
	Check string

	// Index is the zero-based position of the transaction in the ledger.
	Index int

	// Date is the transaction date.
	Date civil.Date

	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: transaction %d (%s): %s",
		strings.ToUpper(e.Severity), e.Check, e.Index+1, e.Date, e.Message)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult holds everything a validation run found.
type ValidationResult struct {
	// IsValid is false when there is an error, or a warning while
	// TreatWarningsAsErrors is set.
	IsValid bool

	Errors       []*ValidationError
	ErrorCount   int
	WarningCount int

	TransactionsValidated int
}

// ApplyTo copies the issues into an import outcome: warnings as warnings,
// errors (and warnings when escalated) as errors.
func (r *ValidationResult) ApplyTo(out *ledger.Outcome, treatWarningsAsErrors bool) {
	for _, e := range r.Errors {
		if e.Severity == SeverityError || treatWarningsAsErrors {
			out.AddError(e.Error())
			continue
		}
		out.AddWarning(e.Error())
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// CustomValidatorFunc inspects one transaction and returns a message when it
// is not acceptable, "" otherwise.
type CustomValidatorFunc func(tx ledger.Transaction, ctx ValidationContext) string

// ValidationContext gives custom validators their position in the ledger.
type ValidationContext struct {
	Index    int
	Previous *ledger.Transaction
	Metadata ledger.Metadata
}

// ValidationOptions configures a Validator.
type ValidationOptions struct {
	// StopOnFirstError stops after the first error-severity issue.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes warnings invalidate the result.
	TreatWarningsAsErrors bool

	// BalanceTolerance is the largest accepted difference between a
	// reported balance and the running balance. Default: 0.
	BalanceTolerance decimal.Decimal

	// Today is the reference date for the future-date check. Zero means
	// the current local date.
	Today civil.Date

	// Disabled lists built-in checks to skip.
	Disabled []string

	// CustomValidators run against every transaction, keyed by name.
	CustomValidators map[string]CustomValidatorFunc
}

// DefaultValidationOptions returns the default options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		CustomValidators: make(map[string]CustomValidatorFunc),
	}
}

// Validator checks ledgers.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// Validate runs the default checks and returns the issues found.
func Validate(l *ledger.Ledger) []*ValidationError {
	return NewValidator().ValidateAll(l).Errors
}

// ValidateAll runs every enabled check over the ledger.
func (v *Validator) ValidateAll(l *ledger.Ledger) *ValidationResult {
	result := &ValidationResult{IsValid: true, Errors: make([]*ValidationError, 0)}
	if l == nil {
		return result
	}
	txs := l.Transactions()
	result.TransactionsValidated = len(txs)

	var issues []*ValidationError
	if v.enabled(CheckBalance) {
		issues = append(issues, checkBalances(txs, v.options.BalanceTolerance)...)
	}
	if v.enabled(CheckDuplicate) {
		issues = append(issues, checkDuplicates(txs)...)
	}
	if v.enabled(CheckZero) {
		issues = append(issues, checkZeroAmounts(txs)...)
	}
	if v.enabled(CheckFuture) {
		issues = append(issues, checkFutureDates(txs, v.today())...)
	}
	issues = append(issues, v.runCustom(txs, l.Metadata())...)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Index < issues[j].Index })

	for _, e := range issues {
		result.Errors = append(result.Errors, e)
		if e.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
			if v.options.StopOnFirstError {
				return result
			}
			continue
		}
		result.WarningCount++
		if v.options.TreatWarningsAsErrors {
			result.IsValid = false
		}
	}
	return result
}

func (v *Validator) enabled(check string) bool {
	for _, d := range v.options.Disabled {
		if d == check {
			return false
		}
	}
	return true
}

func (v *Validator) today() civil.Date {
	if v.options.Today.IsValid() {
		return v.options.Today
	}
	return civil.DateOf(time.Now())
}

func (v *Validator) runCustom(txs []ledger.Transaction, meta ledger.Metadata) []*ValidationError {
	if len(v.options.CustomValidators) == 0 {
		return nil
	}
	names := make([]string, 0, len(v.options.CustomValidators))
	for name := range v.options.CustomValidators {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*ValidationError
	for i, tx := range txs {
		ctx := ValidationContext{Index: i, Metadata: meta}
		if i > 0 {
			prev := txs[i-1]
			ctx.Previous = &prev
		}
		for _, name := range names {
			if msg := v.options.CustomValidators[name](tx, ctx); msg != "" {
				out = append(out, issue(SeverityError, CheckCustom, i, tx, name+": "+msg))
			}
		}
	}
	return out
}

func issue(severity, check string, i int, tx ledger.Transaction, msg string) *ValidationError {
	return &ValidationError{Severity: severity, Check: check, Index: i, Date: tx.Date(), Message: msg}
}

// =============================================================================
// CHECKS
// =============================================================================

// checkBalances compares reported balances between consecutive
// transactions. Exports list transactions oldest first or newest first, so
// both directions are tried and the one that explains more pairs is used.
func checkBalances(txs []ledger.Transaction, tolerance decimal.Decimal) []*ValidationError {
	type pair struct {
		i          int
		prev, cur  decimal.Decimal
		prevAmount decimal.Decimal
		curAmount  decimal.Decimal
	}
	var pairs []pair
	for i := 1; i < len(txs); i++ {
		prev, okPrev := txs[i-1].Balance()
		cur, okCur := txs[i].Balance()
		if okPrev && okCur {
			pairs = append(pairs, pair{i, prev, cur, txs[i-1].Amount(), txs[i].Amount()})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	within := func(a, b decimal.Decimal) bool {
		return a.Sub(b).Abs().LessThanOrEqual(tolerance)
	}
	forward := func(p pair) bool { return within(p.prev.Add(p.curAmount), p.cur) }
	reverse := func(p pair) bool { return within(p.cur.Add(p.prevAmount), p.prev) }

	nf, nr := 0, 0
	for _, p := range pairs {
		if forward(p) {
			nf++
		}
		if reverse(p) {
			nr++
		}
	}
	ok, direction := forward, "oldest first"
	if nr > nf {
		ok, direction = reverse, "newest first"
	}

	var out []*ValidationError
	for _, p := range pairs {
		if ok(p) {
			continue
		}
		var expected decimal.Decimal
		if direction == "oldest first" {
			expected = p.prev.Add(p.curAmount)
		} else {
			expected = p.prev.Sub(p.prevAmount)
		}
		out = append(out, issue(SeverityWarning, CheckBalance, p.i, txs[p.i],
			fmt.Sprintf("balance %s does not follow from the previous row (expected %s, %s)",
				p.cur, expected, direction)))
	}
	return out
}

func checkDuplicates(txs []ledger.Transaction) []*ValidationError {
	seen := make(map[string]int, len(txs))
	var out []*ValidationError
	for i, tx := range txs {
		key := strings.Join([]string{
			tx.Date().String(), tx.Amount().String(), tx.Description(), tx.Reference(),
		}, "\x00")
		if first, dup := seen[key]; dup {
			out = append(out, issue(SeverityWarning, CheckDuplicate, i, tx,
				fmt.Sprintf("same date, amount, description and reference as transaction %d", first+1)))
			continue
		}
		seen[key] = i
	}
	return out
}

func checkZeroAmounts(txs []ledger.Transaction) []*ValidationError {
	var out []*ValidationError
	for i, tx := range txs {
		if tx.Amount().IsZero() {
			out = append(out, issue(SeverityWarning, CheckZero, i, tx, "amount is zero"))
		}
	}
	return out
}

func checkFutureDates(txs []ledger.Transaction, today civil.Date) []*ValidationError {
	var out []*ValidationError
	for i, tx := range txs {
		if tx.Date().After(today) {
			out = append(out, issue(SeverityWarning, CheckFuture, i, tx,
				fmt.Sprintf("date is after %s", today)))
		}
	}
	return out
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation issues for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation completed with %d issue(s):\n\n", len(errors))
	for i, err := range errors {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}
	return builder.String()
}

// WriteErrorLog writes validation issues to a file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Validation log - %s\n\n", time.Now().Format(time.RFC3339))
	writer.WriteString(FormatErrors(errors))
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
