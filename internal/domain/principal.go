package domain

// Principal is the authenticated caller of a funds operation.
type Principal struct {
	UserID string
	Email  string
}
