package dto

import (
	"time"

	"github.com/giropos/fiscal/internal/domain/contingency"
	"github.com/giropos/fiscal/internal/types"
	"github.com/samber/lo"
)

// ContingencyRecordResponse is one queued offline document. The signed
// document text stays server-side.
type ContingencyRecordResponse struct {
	AccessKey     string                  `json:"access_key"`
	Status        types.ContingencyStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	TransmittedAt *time.Time              `json:"transmitted_at,omitempty"`
	Protocol      string                  `json:"protocol,omitempty"`
}

// ToContingencyRecordResponse converts a record for the wire
func ToContingencyRecordResponse(record *contingency.Record) *ContingencyRecordResponse {
	return &ContingencyRecordResponse{
		AccessKey:     record.AccessKey,
		Status:        record.Status,
		CreatedAt:     record.CreatedAt,
		TransmittedAt: record.TransmittedAt,
		Protocol:      record.Protocol,
	}
}

// ListContingencyResponse is the pending queue, oldest first
type ListContingencyResponse struct {
	Items []*ContingencyRecordResponse `json:"items"`
	Total int                          `json:"total"`
}

// ToListContingencyResponse converts the pending queue for the wire
func ToListContingencyResponse(records []*contingency.Record) *ListContingencyResponse {
	items := lo.Map(records, func(r *contingency.Record, _ int) *ContingencyRecordResponse {
		return ToContingencyRecordResponse(r)
	})
	return &ListContingencyResponse{Items: items, Total: len(items)}
}

// RetransmitPendingResponse reports how many retransmissions were
// enqueued by a drain request
type RetransmitPendingResponse struct {
	Enqueued int `json:"enqueued"`
}
