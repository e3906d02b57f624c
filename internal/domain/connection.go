package domain

// Connection is one live client session as seen by the roster.
type Connection struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Online   bool     `json:"online"`
	Channels []string `json:"channels"`
}
