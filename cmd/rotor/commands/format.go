package commands

import (
	"fmt"
	"strings"
)

// formatMoney renders a dollar amount with thousands separators.
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
func formatMoney(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	whole := int64(amount)
	cents := int64((amount-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := fmt.Sprintf("%d", whole)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	return fmt.Sprintf("%s$%s.%02d", sign, strings.Join(groups, ","), cents)
}
