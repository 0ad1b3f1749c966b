package model

import (
	"errors"
	"strings"
)

var (
	errNoQueries = errors.New("model: queries must not be empty")
	errEmptyQuery = errors.New("model: query must not be empty")
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
