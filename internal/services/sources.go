package services

import (
	"context"

	"tenxcards-backend/internal/models"
)

type transcriptSource interface {
	GetTranscript(videoID string) (string, error)
	Title(ctx context.Context, videoID string) string
}

// SourceService prepares source text for generation from uploads and videos.
type SourceService struct {
	files   *FileExtractService
	youtube transcriptSource
}

func NewSourceService(files *FileExtractService, youtube transcriptSource) *SourceService {
	return &SourceService{files: files, youtube: youtube}
}

func (s *SourceService) FromUpload(filename string, data []byte) (*models.SourceTextResponse, error) {
	text, err := s.files.ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	return clipSourceText(text), nil
}

func (s *SourceService) FromYouTube(ctx context.Context, rawURL string) (*models.SourceTextResponse, error) {
	videoID, err := VideoID(rawURL)
	if err != nil {
		return nil, err
	}

	transcript, err := s.youtube.GetTranscript(videoID)
	if err != nil {
		return nil, err
	}

	resp := clipSourceText(transcript)
	resp.Title = s.youtube.Title(ctx, videoID)
	return resp, nil
}

// clipSourceText cuts text to the maximum generation length and reports
// whether the result can be submitted as is.
func clipSourceText(text string) *models.SourceTextResponse {
	runes := []rune(text)
	truncated := false
	if len(runes) > models.MaxSourceTextLength {
		runes = runes[:models.MaxSourceTextLength]
		truncated = true
	}
	return &models.SourceTextResponse{
		SourceText:   string(runes),
		Length:       len(runes),
		WithinLimits: len(runes) >= models.MinSourceTextLength,
		Truncated:    truncated,
	}
}
