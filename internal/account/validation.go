package account

import "regexp"

// emailPattern is a pragmatic RFC 5322 subset, not a full grammar —
// good enough to reject obvious garbage at registration time.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
