package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type StatsResponse struct {
	Outcomes map[string]int64 `json:"outcomes"`
}
