package models

// Bonk records one tag action against a revealed card cluster.
// ClusterID is the cleaned value of the card that produced the cluster.
// Rows are append-only; TimestampMs is assigned by the coordinator at
// receipt time, never taken from the client.
type Bonk struct {
	SessionCode string `json:"session_code"`
	ClusterID   string `json:"cluster_id"`
	PlayerID    string `json:"player_id"`
	TimestampMs int64  `json:"timestamp"`
}

// Combo records one threshold-crossing event for a cluster's sliding
// bonk window. Multiple rows per cluster are expected as the count grows.
type Combo struct {
	SessionCode string `json:"session_code"`
	ClusterID   string `json:"cluster_id"`
	ComboCount  int    `json:"combo_count"`
	TimestampMs int64  `json:"timestamp"`
}

// SessionSummary is the read-only projection served by summary.json.
type SessionSummary struct {
	NumCards int     `json:"num_cards"`
	NumBonks int     `json:"num_bonks"`
	Combos   []Combo `json:"combos"`
}
