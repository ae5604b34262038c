package dto

type CreateEventRequest struct {
	Title     string   `json:"title"`
	StreamRef string   `json:"stream_ref"`
	Entrants  []string `json:"entrants"`
}

type PlaceBetRequest struct {
	EntrantIndex *int   `json:"entrant_index"`
	Amount       uint64 `json:"amount"`
}

type DeclareWinnerRequest struct {
	WinnerIndex *int `json:"winner_index"`
}
