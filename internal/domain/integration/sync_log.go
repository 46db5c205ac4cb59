package integration

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SyncLogStatus is the status recorded on a sync log entry
type SyncLogStatus string

const (
	SyncLogStatusError   SyncLogStatus = "Error"
	SyncLogStatusSuccess SyncLogStatus = "Success"
)

// SyncLog is one persisted record of a failed order, carrying enough context
// (raw payload, full error chain) to reprocess the order by hand
type SyncLog struct {
	ID                uuid.UUID
	Status            SyncLogStatus
	Method            string
	Title             string
	Message           string
	ErrorKind         ErrorKind
	StorefrontOrderID string
	RequestData       string
	CreatedAt         time.Time
}

// NewErrorLog builds an error record for an order that failed to sync.
// order may be nil when the failure happened before an order was read.
func NewErrorLog(method string, order *StorefrontOrder, err error) *SyncLog {
	log := &SyncLog{
		ID:        uuid.New(),
		Status:    SyncLogStatusError,
		Method:    method,
		Title:     titleOf(err),
		Message:   describe(err),
		ErrorKind: ClassifyError(err),
		CreatedAt: time.Now(),
	}
	if order != nil {
		log.StorefrontOrderID = order.ExternalID()
		if raw, mErr := json.Marshal(order); mErr == nil {
			log.RequestData = string(raw)
		}
	}
	return log
}

// describe renders the full wrapped chain, outermost first
func describe(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	depth := 0
	for inner := unwrapOnce(err); inner != nil; inner = unwrapOnce(inner) {
		depth++
		fmt.Fprintf(&b, "\n%s caused by (%T): %s", strings.Repeat("  ", depth), inner, inner.Error())
	}
	return b.String()
}

func unwrapOnce(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func titleOf(err error) string {
	title := err.Error()
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	// the column holds 140 characters, not bytes
	const maxTitle = 140
	if utf8.RuneCountInString(title) > maxTitle {
		title = string([]rune(title)[:maxTitle])
	}
	return title
}

// RunResult is the explicit outcome of one sync run
type RunResult struct {
	SuccessCount int
	SkippedCount int
	Errors       []SyncLog
	StartedAt    time.Time
	FinishedAt   time.Time
	// Aborted holds the fatal error that stopped the run, if any
	Aborted error
}

// FailedCount returns the number of orders that were logged as failed
func (r RunResult) FailedCount() int {
	return len(r.Errors)
}
