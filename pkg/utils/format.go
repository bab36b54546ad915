// Package utils provides shared utility functions.
package utils

import (
	"strconv"
	"strings"
)

// RupeeSymbol prefixes currency amounts.
const RupeeSymbol = "₹"

// FormatIndianCurrency formats an amount with two decimals and Indian
// digit grouping (lakhs, crores), e.g. ₹12,34,567.50.
func FormatIndianCurrency(amount float64) string {
	return formatGrouped(strconv.FormatFloat(amount, 'f', 2, 64), RupeeSymbol)
}

// FormatPnL formats P&L as currency with an explicit sign for gains.
func FormatPnL(pnl float64) string {
	s := FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + s
	}
	return s
}

// FormatQuantity formats a quantity with Indian digit grouping.
func FormatQuantity(qty int64) string {
	return formatGrouped(strconv.FormatInt(qty, 10), "")
}

// FormatPrice formats an underlying or strike price with Indian digit
// grouping and no currency symbol. Whole prices drop the decimals.
func FormatPrice(price float64) string {
	return formatGrouped(strconv.FormatFloat(Round(price, 2), 'f', -1, 64), "")
}

// formatGrouped groups the integer digits of a decimal string and puts
// prefix between the sign and the digits.
func formatGrouped(num, prefix string) string {
	sign := ""
	if strings.HasPrefix(num, "-") {
		sign, num = "-", num[1:]
	}
	intPart, frac, hasFrac := strings.Cut(num, ".")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(prefix)
	b.WriteString(groupIndian(intPart))
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// groupIndian places commas after the last three digits and then every
// two digits.
func groupIndian(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	head, tail := digits[:n-3], digits[n-3:]

	var groups []string
	if len(head)%2 == 1 {
		groups = append(groups, head[:1])
		head = head[1:]
	}
	for ; len(head) > 0; head = head[2:] {
		groups = append(groups, head[:2])
	}
	return strings.Join(append(groups, tail), ",")
}
