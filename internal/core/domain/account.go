package domain

import "regexp"

var telPattern = regexp.MustCompile(`^0\d{1,2}-\d{3,4}-\d{4}$`)

// ValidTel reports whether tel looks like a domestic phone number, e.g. 010-1234-5678.
func ValidTel(tel string) bool {
	return telPattern.MatchString(tel)
}

type User struct {
	UserID       string `json:"userId"`
	PasswordHash string `json:"-"`
	Name         string `json:"userName"`
	Tel          string `json:"userTel"`
	Address      string `json:"userAddress"`
}
