package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reqtrack/internal/model"
	"reqtrack/internal/permission"
	"reqtrack/internal/repository"
)

// AttachmentService stores uploaded files against requisitions. Files land
// on disk under the configured directory; metadata rows live in the store.
type AttachmentService interface {
	Upload(ctx context.Context, actor permission.Actor, requisitionID uuid.UUID, files []*multipart.FileHeader) ([]AttachmentResponse, error)
	Delete(ctx context.Context, actor permission.Actor, id uuid.UUID) error
}

type attachmentService struct {
	repo      repository.AttachmentRepository
	reqs      repository.RequisitionRepository
	uploadDir string
}

// NewAttachmentService returns an AttachmentService writing files under uploadDir
func NewAttachmentService(repo repository.AttachmentRepository, reqs repository.RequisitionRepository, uploadDir string) AttachmentService {
	return &attachmentService{repo: repo, reqs: reqs, uploadDir: uploadDir}
}

func (s *attachmentService) Upload(ctx context.Context, actor permission.Actor, requisitionID uuid.UUID, files []*multipart.FileHeader) ([]AttachmentResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrValidation)
	}

	req, err := s.reqs.GetByID(ctx, requisitionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: requisition %s", ErrNotFound, requisitionID)
		}
		return nil, err
	}

	if !permission.Can(actor, permission.ActionUploadAttachment, req.RequesterID, req.Status) {
		return nil, fmt.Errorf("%w: you do not have permission to upload files to this requisition", ErrPermissionDenied)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	responses := make([]AttachmentResponse, 0, len(files))
	for _, header := range files {
		stored := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], filepath.Base(header.Filename))
		if err := saveUploadedFile(header, filepath.Join(s.uploadDir, stored)); err != nil {
			return nil, fmt.Errorf("failed to store file %s: %w", header.Filename, err)
		}

		uploadedBy := actor.ID
		attachment := model.Attachment{
			RequisitionID: requisitionID,
			Filename:      stored,
			OriginalName:  header.Filename,
			MimeType:      header.Header.Get("Content-Type"),
			Size:          header.Size,
			UploadedBy:    &uploadedBy,
		}
		if err := s.repo.Create(ctx, &attachment); err != nil {
			// Best effort cleanup of the orphaned file
			_ = os.Remove(filepath.Join(s.uploadDir, stored))
			return nil, fmt.Errorf("failed to record attachment: %w", err)
		}

		responses = append(responses, AttachmentResponse{
			ID:             attachment.ID.String(),
			Filename:       stored,
			OriginalName:   header.Filename,
			MimeType:       attachment.MimeType,
			Size:           header.Size,
			UploadedByName: actor.Username,
			UploadedAt:     attachment.UploadedAt.Format(time.RFC3339),
		})
	}

	return responses, nil
}

func (s *attachmentService) Delete(ctx context.Context, actor permission.Actor, id uuid.UUID) error {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: attachment %s", ErrNotFound, id)
		}
		return err
	}

	req, err := s.reqs.GetByID(ctx, attachment.RequisitionID)
	if err != nil {
		return fmt.Errorf("failed to load owning requisition: %w", err)
	}

	// Looser than edit: the owning requester may remove their own
	// attachments at any status; privileged roles always may.
	allowed := actor.Privileged() || (actor.Role == model.RoleRequester && actor.ID == req.RequesterID)
	if !allowed {
		return fmt.Errorf("%w: you do not have permission to delete this attachment", ErrPermissionDenied)
	}

	// Continue even if the file is already gone from disk
	_ = os.Remove(filepath.Join(s.uploadDir, attachment.Filename))

	return s.repo.Delete(ctx, id)
}

func saveUploadedFile(header *multipart.FileHeader, dst string) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
