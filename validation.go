package main

import "strings"

const (
	demoUserPrefix   = "demo-"
	maxTelegramIDLen = 20
)

// isValidUserID accepts the two kinds of id a session can carry: a positive
// Telegram user id in decimal, or a demo id such as "demo-1".
func isValidUserID(userID string) bool {
	if rest, ok := strings.CutPrefix(userID, demoUserPrefix); ok {
		return rest != "" && len(rest) <= maxTelegramIDLen && isDigits(rest)
	}
	if userID == "" || len(userID) > maxTelegramIDLen || userID[0] == '0' {
		return false
	}
	return isDigits(userID)
}

func isDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
