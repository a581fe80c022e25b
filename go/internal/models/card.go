package models

// Workshop phases a card can be submitted in.
const (
	CardPhasePre  = "pre"
	CardPhasePost = "post"
)

// Card represents one accepted text submission within a session.
// Within a session at most one card exists per distinct Cleaned value;
// cards are never mutated or deleted for the lifetime of the store.
type Card struct {
	SessionCode string `json:"session_code"`
	Text        string `json:"text"`
	PlayerID    string `json:"player_id"`
	Phase       string `json:"phase"`
	Cleaned     string `json:"cleaned"` // normalized dedup key, derived from Text
}

// RevealCard is the projection of a card broadcast during a reveal.
// PlayerID and Phase are withheld so submissions stay anonymous.
type RevealCard struct {
	Text    string `json:"text"`
	Cleaned string `json:"cleaned"`
}
