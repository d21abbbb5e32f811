package api

import (
	"net/http"
	"time"

	"github.com/xraph/hume/queue"
	"github.com/xraph/hume/status"
)

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Tasks []status.Entry `json:"tasks"`
}

func (h *Handler) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Tasks: h.board.Snapshot()})
}

type queueRecord struct {
	ID         int64     `json:"id"`
	HumeID     string    `json:"hume_id"`
	ReceivedAt time.Time `json:"received_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
	Task       string    `json:"task,omitempty"`
	Level      string    `json:"level,omitempty"`
}

type queueResponse struct {
	Pending int64         `json:"pending"`
	Records []queueRecord `json:"records"`
}

func newQueueRecord(rec *queue.Record) queueRecord {
	out := queueRecord{
		ID:         rec.ID,
		HumeID:     rec.HumeID.String(),
		ReceivedAt: rec.ReceivedAt,
		Attempts:   rec.Attempts,
		LastError:  rec.LastError,
	}
	if m, err := rec.Message(); err == nil {
		out.Hostname = m.Hostname
		out.Task = m.Task
		out.Level = string(m.Level)
	}
	return out
}

// getQueue lists the oldest pending records, ?limit=N (default 100).
func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pending, err := h.store.CountPending(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records, err := h.store.ListPending(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(records) > limit {
		records = records[:limit]
	}
	resp := queueResponse{Pending: pending, Records: make([]queueRecord, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, newQueueRecord(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}
