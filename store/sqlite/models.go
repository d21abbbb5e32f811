package sqlite

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/hume/id"
	"github.com/xraph/hume/queue"
)

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type queueModel struct {
	grove.BaseModel `grove:"table:hume_queue"`

	ID         int64   `grove:"id,pk,autoincrement"`
	HumeID     string  `grove:"hume_id"`
	ReceivedAt string  `grove:"received_at"`
	Sent       bool    `grove:"sent"`
	SentAt     *string `grove:"sent_at"`
	Attempts   int     `grove:"attempts"`
	LastError  string  `grove:"last_error"`
	Payload    string  `grove:"payload"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fromQueueModel(m *queueModel) (*queue.Record, error) {
	humeID, err := id.ParseHumeID(m.HumeID)
	if err != nil {
		return nil, fmt.Errorf("record %d: parse hume ID %q: %w", m.ID, m.HumeID, err)
	}
	receivedAt, err := time.Parse(timeLayout, m.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("record %d: received_at: %w", m.ID, err)
	}

	r := &queue.Record{
		ID:         m.ID,
		HumeID:     humeID,
		ReceivedAt: receivedAt,
		Sent:       m.Sent,
		Attempts:   m.Attempts,
		LastError:  m.LastError,
		Payload:    []byte(m.Payload),
	}
	if m.SentAt != nil {
		sentAt, err := time.Parse(timeLayout, *m.SentAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: sent_at: %w", m.ID, err)
		}
		r.SentAt = &sentAt
	}
	return r, nil
}
