package entity

// DefaultResultFileURL is the placeholder link handed back for every accepted file.
const DefaultResultFileURL = "/example-result.xlsx"

// StoredFile describes raw upload bytes written to the uploads directory.
type StoredFile struct {
	ID         int64
	Name       string
	Path       string
	Size       int64
	ReceivedAt int64
}

// IngestResult is the acknowledgment returned for an accepted upload.
// ResultFileURL is a placeholder and never derived from the uploaded content.
type IngestResult struct {
	Message       string
	ResultFileURL string
}

// IngestedEvent announces a file that has been written and awaits processing.
type IngestedEvent struct {
	EventID string
	File    StoredFile
}
