package models

// Requests for the radar HTTP endpoints. Defined in domain for consistency and reuse.

type CandidatesRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}

type SignalsRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=active success fail partial"`
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,max=20"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SignalRequest struct {
	ID string `param:"id" json:"-" validate:"required,uuid"`
}

type FeedbackRequest struct {
	ID      string `param:"id" json:"-" validate:"required,uuid"`
	Outcome string `json:"outcome" validate:"required,oneof=success fail partial"`
	Comment string `json:"comment" validate:"max=500"`
}

type CallbackFeedbackRequest struct {
	Data    string `json:"data" validate:"required,max=128"`
	Comment string `json:"comment" validate:"max=500"`
}

type FeedbackStatsRequest struct {
	Days int `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" json:"-" validate:"required,max=20"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
