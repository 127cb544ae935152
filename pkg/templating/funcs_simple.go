package templating

import "strconv"

// plural returns "n singular" when n is 1 and "n pluralForm" otherwise.
func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return strconv.Itoa(n) + " " + singular
	}
	return strconv.Itoa(n) + " " + pluralForm
}
