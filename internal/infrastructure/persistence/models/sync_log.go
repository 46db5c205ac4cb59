package models

import (
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncLogModel is the persistence model for a SyncLog record
type SyncLogModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	Status            string    `gorm:"type:varchar(20);not null;index"`
	Method            string    `gorm:"type:varchar(140);not null"`
	Title             string    `gorm:"type:varchar(140)"`
	Message           string    `gorm:"type:text"`
	ErrorKind         string    `gorm:"type:varchar(40);index"`
	StorefrontOrderID string    `gorm:"type:varchar(64);index"`
	RequestData       string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() integration.SyncLog {
	return integration.SyncLog{
		ID:                m.ID,
		Status:            integration.SyncLogStatus(m.Status),
		Method:            m.Method,
		Title:             m.Title,
		Message:           m.Message,
		ErrorKind:         integration.ErrorKind(m.ErrorKind),
		StorefrontOrderID: m.StorefrontOrderID,
		RequestData:       m.RequestData,
		CreatedAt:         m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncLog
func (m *SyncLogModel) FromDomain(log *integration.SyncLog) {
	m.ID = log.ID
	m.Status = string(log.Status)
	m.Method = log.Method
	m.Title = log.Title
	m.Message = log.Message
	m.ErrorKind = string(log.ErrorKind)
	m.StorefrontOrderID = log.StorefrontOrderID
	m.RequestData = log.RequestData
	m.CreatedAt = log.CreatedAt
}
