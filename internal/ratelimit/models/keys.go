package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers
// containing ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// CounterKey builds the store key for a (subject, route-class) pair.
func CounterKey(scope Scope, identifier string, class RouteClass) string {
	return string(scope) + ":" + SanitizeKeySegment(identifier) + ":" + string(class)
}
