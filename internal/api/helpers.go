package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokenlens/internal/inference"
)

func writeBadRequest(c *echo.Context, msg, hint string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, hint)
}

func writeError(c *echo.Context, status int, errType, msg, hint string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Hint:    hint,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func toTokenInfo(t inference.Token) TokenInfo {
	return TokenInfo{
		TokenID:   t.ID,
		TokenText: t.DisplayText,
		Prob:      t.Prob,
		Logprob:   t.Logprob,
	}
}

func toTokenInfos(tokens []inference.Token) []TokenInfo {
	out := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		out[i] = toTokenInfo(t)
	}
	return out
}

func toChosenToken(c inference.ChosenToken) ChosenToken {
	return ChosenToken{
		TokenID:   c.ID,
		TokenText: c.DisplayText,
		Prob:      c.Prob,
		Logprob:   c.Logprob,
		Surprisal: c.Surprisal,
	}
}

func toLastToken(t *inference.ContextToken) LastToken {
	if t == nil {
		return LastToken{}
	}
	id := t.ID
	text := t.DisplayText
	return LastToken{ID: &id, Text: &text}
}
