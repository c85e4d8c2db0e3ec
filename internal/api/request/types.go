package request

// CreateLobbyRequest is the request body for creating a lobby
type CreateLobbyRequest struct {
	Code string `json:"code"`
}
