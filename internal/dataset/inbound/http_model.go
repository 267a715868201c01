package inbound

// IngestResponse is the body of a successful POST /api/processcsvfile.
type IngestResponse struct {
	Message       string `json:"message"`
	ResultFileURL string `json:"resultFileUrl"`
}
