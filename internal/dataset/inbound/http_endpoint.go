package inbound

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/shandysiswandi/godataset/internal/dataset/usecase"
	"github.com/shandysiswandi/godataset/internal/pkg/pkgerror"
)

const fileField = "file"

var errNoFile = pkgerror.NewValidation("No file uploaded", pkgerror.CodeInvalidFormat)

type HTTPEndpoint struct {
	uc uc
}

// ProcessCSVFile streams the "file" part of a multipart form to the usecase.
// A well-formed request without such a part is answered with 400; a form
// that breaks off or cannot be parsed is a 500.
func (h *HTTPEndpoint) ProcessCSVFile(ctx context.Context, r *http.Request) (any, error) {
	part, err := extractMultipartFile(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = part.Close() }()

	result, err := h.uc.Ingest(ctx, usecase.IngestInput{FileName: part.FileName()}, part)
	if err != nil {
		return nil, err
	}

	return IngestResponse{
		Message:       result.Message,
		ResultFileURL: result.ResultFileURL,
	}, nil
}

func extractMultipartFile(r *http.Request) (*multipart.Part, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return nil, errNoFile
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFile
	}

	for {
		part, err := reader.NextPart()
		//nolint:errorlint // only the clean end of the form is a bare io.EOF
		if err == io.EOF {
			return nil, errNoFile
		}
		if err != nil {
			return nil, pkgerror.NewServer(fmt.Errorf("read multipart form: %w", err))
		}

		// a plain form value named "file" is not a file
		if part.FormName() == fileField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}
