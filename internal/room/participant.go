package room

// Participant is one connected user inside a room. The wire shape matches
// what the frontend already consumes: username, socket id, and a win
// counter reserved for game results (never touched by the relay itself).
type Participant struct {
	Username string `json:"username"`
	ConnID   string `json:"id"`
	Score    int    `json:"win"`
}
