package user

import "sort"

// User is the only entity the view knows about. The username is its identity.
type User struct {
	Username string `json:"username"`
}

// SortByUsername returns a copy of users ordered by username, ascending.
// Comparison is byte-wise and equal usernames keep their original order.
func SortByUsername(users []User) []User {
	return SortBy(users, func(u User) string { return u.Username })
}

// SortBy returns a stably sorted copy of items, ordered by key.
func SortBy[T any](items []T, key func(T) string) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) < key(sorted[j])
	})
	return sorted
}
