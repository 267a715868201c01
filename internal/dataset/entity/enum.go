package entity

type IngestStatus string

const (
	IngestStatusReceiving IngestStatus = "RECEIVING"
	IngestStatusWritten   IngestStatus = "WRITTEN"
	IngestStatusFailed    IngestStatus = "FAILED"
)

type NotificationKind string

const (
	NotificationInfo    NotificationKind = "INFO"
	NotificationSuccess NotificationKind = "SUCCESS"
	NotificationError   NotificationKind = "ERROR"
)
