package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vnmchuo/adstream-gateway/internal/pricing"
)

// Record is the metered usage of one completion.
type Record struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"requestId,omitempty"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	EstimatedCost    float64   `json:"estimatedCost"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewRecord prices the token counts and stamps the record with a fresh ID
// and the current UTC time.
func NewRecord(requestID, provider, model string, promptTokens, completionTokens int) *Record {
	return &Record{
		ID:               uuid.New().String(),
		RequestID:        requestID,
		Provider:         provider,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCost:    pricing.CalculateCost(provider, model, promptTokens, completionTokens),
		Timestamp:        time.Now().UTC(),
	}
}

// Filter narrows a usage query. An empty Provider matches every provider.
type Filter struct {
	From     time.Time
	To       time.Time
	Provider string
}

type Store interface {
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context, f Filter) ([]*Record, error)
	TotalCost(ctx context.Context, f Filter) (float64, error)
}

// NopStore discards records. It is used when no database is configured.
type NopStore struct{}

func (NopStore) Save(context.Context, *Record) error { return nil }

func (NopStore) List(context.Context, Filter) ([]*Record, error) { return nil, nil }

func (NopStore) TotalCost(context.Context, Filter) (float64, error) { return 0, nil }

// StoreState describes s for health reporting: "disabled" for NopStore, the
// breaker state for a store guarded by one, "enabled" otherwise.
func StoreState(s Store) string {
	switch st := s.(type) {
	case NopStore:
		return "disabled"
	case interface{ State() string }:
		return st.State()
	default:
		return "enabled"
	}
}
