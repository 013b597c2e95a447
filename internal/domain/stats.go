package domain

// BotStats is derived on demand from a bot's order history and open
// positions, never cached. Error is set when a bot's stats could not be
// collected; the remaining fields are then zero.
type BotStats struct {
	Name          string  `json:"name"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	OpenPositions int     `json:"current_positions"`
	Running       bool    `json:"running"`
	Error         string  `json:"error,omitempty"`
}

// Health summarizes the orchestrator for the dashboard health endpoint.
type Health struct {
	RunningBots int `json:"running_bots"`
	TotalBots   int `json:"total_bots"`
}
