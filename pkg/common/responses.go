package common

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details string                 `json:"details,omitempty"`
	Debug   map[string]interface{} `json:"debug,omitempty"`
}

// NewErrorResponse renders err for clients. The cause is only exposed for
// integration failures, where it names the failing downstream call.
func NewErrorResponse(err *AppError) ErrorResponse {
	resp := ErrorResponse{
		Error: err.Message,
		Debug: err.Debug,
	}
	if err.Kind == KindIntegration && err.Err != nil {
		resp.Details = err.Err.Error()
	}
	return resp
}

// WebhookResponse is returned by both affiliate postback endpoints.
type WebhookResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	TransactionID string  `json:"transactionId"`
	NFTMinted     bool    `json:"nftMinted"`
	NFTTokenID    *string `json:"nftTokenId"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
