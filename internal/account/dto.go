package account

type AccountResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Balance  string `json:"balance"`
}
