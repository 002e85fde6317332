package users

// User is a single decoded user record. ID is assigned by the remote service
// and identifies the user.
type User struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Company Company `json:"company"`
}

// Company is the employer nested inside a User.
type Company struct {
	Name string `json:"name"`
}
