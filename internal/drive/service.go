// Package drive archives processed PDF documents in Google Drive. Files
// are filed under a month subfolder of the document type's base folder
// and renamed with an issue date prefix, so re-runs can detect an already
// archived document by name.
package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"kaigen/internal/logger"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Service uploads documents to Google Drive.
type Service struct {
	driveService *drive.Service
	log          zerolog.Logger
}

// NewService creates a Drive service with credentials from
// GOOGLE_APPLICATION_CREDENTIALS or inline GOOGLE_CREDENTIALS JSON.
func NewService(ctx context.Context) (*Service, error) {
	const op = "NewService"

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		var err error
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: reading credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing credentials: %w", op, err)
	}

	driveService, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: creating drive service: %w", op, err)
	}

	return &Service{
		driveService: driveService,
		log:          logger.WithComponent("drive"),
	}, nil
}

// archiveName prefixes the base file name with the document's issue date.
func archiveName(filePath string, issueDate time.Time) string {
	return fmt.Sprintf("%s_%s", issueDate.Format("20060102"), filepath.Base(filePath))
}

// monthFolder is the zero-padded month subfolder name ("01" through "12").
func monthFolder(issueDate time.Time) string {
	return issueDate.Format("01")
}

// findMonthFolder returns the ID of the month subfolder, or empty when it
// does not exist yet.
func (s *Service) findMonthFolder(ctx context.Context, baseFolderID string, issueDate time.Time) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
		monthFolder(issueDate), baseFolderID, folderMimeType)

	resp, err := s.driveService.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("listing month folders: %w", err)
	}
	if len(resp.Files) == 0 {
		return "", nil
	}
	return resp.Files[0].Id, nil
}

// ensureMonthFolder returns the month subfolder's ID, creating the folder
// when absent.
func (s *Service) ensureMonthFolder(ctx context.Context, baseFolderID string, issueDate time.Time) (string, error) {
	folderID, err := s.findMonthFolder(ctx, baseFolderID, issueDate)
	if err != nil {
		return "", err
	}
	if folderID != "" {
		return folderID, nil
	}

	folder, err := s.driveService.Files.Create(&drive.File{
		Name:     monthFolder(issueDate),
		MimeType: folderMimeType,
		Parents:  []string{baseFolderID},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating month folder %s: %w", monthFolder(issueDate), err)
	}

	s.log.Info().
		Str("folder", monthFolder(issueDate)).
		Str("folder_id", folder.Id).
		Msg("Created month folder in Drive")

	return folder.Id, nil
}

// Exists reports whether the document is already archived: a file with
// the date-prefixed name inside the month subfolder of baseFolderID. A
// missing month folder means the document is absent.
func (s *Service) Exists(ctx context.Context, filePath, baseFolderID string, issueDate time.Time) (bool, error) {
	const op = "Exists"

	monthFolderID, err := s.findMonthFolder(ctx, baseFolderID, issueDate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if monthFolderID == "" {
		return false, nil
	}

	name := archiveName(filePath, issueDate)
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", name, monthFolderID)
	resp, err := s.driveService.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id)").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("%s: listing files: %w", op, err)
	}

	exists := len(resp.Files) > 0
	if exists {
		s.log.Info().Str("name", name).Msg("Document already archived in Drive")
	}
	return exists, nil
}

// Upload archives the file under the month subfolder of baseFolderID with
// a date-prefixed name. Already archived documents are skipped.
func (s *Service) Upload(ctx context.Context, filePath, baseFolderID string, issueDate time.Time) error {
	const op = "Upload"

	exists, err := s.Exists(ctx, filePath, baseFolderID, issueDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	name := archiveName(filePath, issueDate)
	if exists {
		s.log.Info().Str("name", name).Msg("Skipping upload of existing document")
		return nil
	}

	targetFolderID, err := s.ensureMonthFolder(ctx, baseFolderID, issueDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s: opening %s: %w", op, filePath, err)
	}
	defer f.Close()

	file, err := s.driveService.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{targetFolderID},
	}).Media(f).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: uploading %s: %w", op, name, err)
	}

	s.log.Info().
		Str("name", name).
		Str("file_id", file.Id).
		Str("month", monthFolder(issueDate)).
		Msg("Document uploaded to Drive")

	return nil
}
