package inbound

import (
	"context"
	"io"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
	"github.com/shandysiswandi/godataset/internal/dataset/usecase"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"
)

// ProcessCSVFilePath is the ingest endpoint the upload widget posts to.
const ProcessCSVFilePath = "/api/processcsvfile"

type uc interface {
	Ingest(ctx context.Context, in usecase.IngestInput, r io.Reader) (entity.IngestResult, error)
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST(ProcessCSVFilePath, end.ProcessCSVFile)
}
