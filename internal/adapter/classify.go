package adapter

import "strings"

// Category is a coarse transaction category.
type Category string

const (
	CategoryStocks     Category = "stocks"
	CategoryDividend   Category = "dividend"
	CategoryFee        Category = "fee"
	CategoryTax        Category = "tax"
	CategoryTransfer   Category = "transfer"
	CategoryInterest   Category = "interest"
	CategoryDeposit    Category = "deposit"
	CategoryWithdrawal Category = "withdrawal"
	CategoryOther      Category = "other"
)

// classifyRules are checked in order; the first rule with a matching
// keyword wins. Fees come before tax so "דמי ניהול" is not read as tax.
var classifyRules = []struct {
	category Category
	keywords []string
}{
	{CategoryDividend, []string{"דיבידנד", "דיב", "dividend"}},
	{CategoryStocks, []string{"קנייה", "קניה", "מכירה", "buy", "sell", "purchase"}},
	{CategoryFee, []string{"עמלה", "עמלת", "דמי", "fee", "commission"}},
	{CategoryInterest, []string{"ריבית", "interest"}},
	{CategoryTax, []string{"מס", "tax"}},
	{CategoryDeposit, []string{"הפקדה", "deposit"}},
	{CategoryWithdrawal, []string{"משיכה", "withdrawal"}},
	{CategoryTransfer, []string{"העברה", "transfer"}},
}

// Classify maps a broker action to a category by keyword. Unknown actions
// are CategoryOther.
func Classify(action string) Category {
	s := strings.ToLower(strings.TrimSpace(action))
	if s == "" {
		return CategoryOther
	}
	for _, r := range classifyRules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.category
			}
		}
	}
	return CategoryOther
}
