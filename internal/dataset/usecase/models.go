package usecase

const ingestMessage = "File processed successfully"

type IngestInput struct {
	FileName string
}
