package api

// Wire types for the stepping endpoints. Field names are part of the v1
// contract and never change shape between /step and /next_dist: the step
// response is the distribution response plus the chosen token.

type NextDistRequest struct {
	ContextText string `json:"context_text"`
	TopK        *int   `json:"top_k"`
}

type StepRequest struct {
	ContextText      string   `json:"context_text"`
	TopK             *int     `json:"top_k"`
	Mode             string   `json:"mode"`
	Temperature      *float64 `json:"temperature"`
	TopP             *float64 `json:"top_p"`
	SoftenNewlineEOT *bool    `json:"soften_newline_eot"`
}

type TokenInfo struct {
	TokenID   int     `json:"token_id"`
	TokenText string  `json:"token_text"`
	Prob      float64 `json:"prob"`
	Logprob   float64 `json:"logprob"`
}

type ChosenToken struct {
	TokenID   int     `json:"token_id"`
	TokenText string  `json:"token_text"`
	Prob      float64 `json:"prob"`
	Logprob   float64 `json:"logprob"`
	Surprisal float64 `json:"surprisal"`
}

// LastToken is null-bodied on a cold start: both fields stay nil when the
// prepared context is empty.
type LastToken struct {
	ID   *int    `json:"id"`
	Text *string `json:"text"`
}

type ModelInfo struct {
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
	VocabSize int    `json:"vocab_size"`
}

type NextDistResponse struct {
	ContextLenTokens int         `json:"context_len_tokens"`
	Truncated        bool        `json:"truncated"`
	TopK             []TokenInfo `json:"topk"`
	CoverageTopK     float64     `json:"coverage_topk"`
	UsedTopK         int         `json:"used_top_k"`
	LastToken        LastToken   `json:"last_token"`
	ModelInfo        ModelInfo   `json:"model_info"`
	ContractVersion  string      `json:"contract_version"`
}

type StepResponse struct {
	NextDistResponse
	Chosen     ChosenToken `json:"chosen"`
	AppendText string      `json:"append_text"`
}

type HealthzResponse struct {
	ModelName       string `json:"model_name"`
	VocabSize       int    `json:"vocab_size"`
	ContractVersion string `json:"contract_version"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Hint    string `json:"hint,omitempty"`
}
