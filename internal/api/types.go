package api

import (
	"encoding/json"
	"time"

	"github.com/quietqueue/jobqueue/internal/queuecore"
)

// jobView is the wire representation of a queuecore.Job. Every epoch-ms
// field carries an ISO-8601 mirror alongside it (spec.md §4.3) so clients
// don't have to parse millisecond timestamps themselves.
type jobView struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Target        string  `json:"target"`
	CreatedAt     int64   `json:"createdAt"`
	CreatedAtIso  string  `json:"createdAtIso"`
	Status        string  `json:"status"`
	UpdatedAt     *int64  `json:"updatedAt,omitempty"`
	UpdatedAtIso  *string `json:"updatedAtIso,omitempty"`
	LeaseUntil    *int64  `json:"leaseUntil,omitempty"`
	LeaseUntilIso *string `json:"leaseUntilIso,omitempty"`
	Attempts      int     `json:"attempts"`
	MaxAttempts   int     `json:"maxAttempts"`
	NextRunAt     *int64  `json:"nextRunAt,omitempty"`
	NextRunAtIso  *string `json:"nextRunAtIso,omitempty"`
	Result        any     `json:"result,omitempty"`
	Error         *string `json:"error,omitempty"`
	SortAt        int64   `json:"sortAt"`
	SortAtIso     string  `json:"sortAtIso"`
}

// msToISO renders an epoch-millisecond timestamp as an RFC3339 (ISO-8601)
// string in UTC, matching the ISO rendering solaius-kf-reg uses for its own
// timestamp fields.
func msToISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func msToISOPtr(ms *int64) *string {
	if ms == nil {
		return nil
	}
	iso := msToISO(*ms)
	return &iso
}

// decodeResult deserializes a job's stored JSON result back into its
// original shape, falling back to the raw string if it doesn't parse as
// JSON (spec.md §4.3, §8's complete/get round-trip property).
func decodeResult(raw *string) any {
	if raw == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*raw), &v); err != nil {
		return *raw
	}
	return v
}

func toJobView(j queuecore.Job) jobView {
	return jobView{
		ID:            j.ID,
		Type:          string(j.Type),
		Target:        j.Target,
		CreatedAt:     j.CreatedAt,
		CreatedAtIso:  msToISO(j.CreatedAt),
		Status:        string(j.Status),
		UpdatedAt:     j.UpdatedAt,
		UpdatedAtIso:  msToISOPtr(j.UpdatedAt),
		LeaseUntil:    j.LeaseUntil,
		LeaseUntilIso: msToISOPtr(j.LeaseUntil),
		Attempts:      j.Attempts,
		MaxAttempts:   j.MaxAttempts,
		NextRunAt:     j.NextRunAt,
		NextRunAtIso:  msToISOPtr(j.NextRunAt),
		Result:        decodeResult(j.Result),
		Error:         j.Error,
		SortAt:        j.SortAt,
		SortAtIso:     msToISO(j.SortAt),
	}
}

type enqueueRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Target      string `json:"target"`
	MaxAttempts *int   `json:"maxAttempts,omitempty"`
}

type completeRequest struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

type failRequest struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type requeueRequest struct {
	ID string `json:"id"`
}

type purgeRequest struct {
	BeforeMS int64 `json:"beforeMs"`
}

type statEntry struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// toStatEntries orders entries by status ascending (spec.md §4.3: done,
// failed, processing, queued).
func toStatEntries(s queuecore.Stats) []statEntry {
	return []statEntry{
		{Status: "done", Count: s.Done},
		{Status: "failed", Count: s.Failed},
		{Status: "processing", Count: s.Processing},
		{Status: "queued", Count: s.Queued},
	}
}
