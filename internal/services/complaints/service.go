package complaints

import (
	"context"
	"errors"
	"strings"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/events"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, c *models.Complaint) error
	GetByRef(ctx context.Context, ref string) (*models.Complaint, error)
	List(ctx context.Context, status string) ([]models.Complaint, error)
	Respond(ctx context.Context, ref, response string, responder uuid.UUID, at time.Time) error
}

type StudentLookup interface {
	GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

type Service struct {
	complaints Store
	students   StudentLookup
	events     events.Publisher
	log        *zap.Logger
	now        func() time.Time
	newRef     func() string
}

func NewService(complaints Store, students StudentLookup, publisher events.Publisher, log *zap.Logger, newRef func() string) *Service {
	return &Service{
		complaints: complaints,
		students:   students,
		events:     publisher,
		log:        log,
		now:        time.Now,
		newRef:     newRef,
	}
}

type SubmitRequest struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// Submit files a complaint on behalf of the calling student.
func (s *Service) Submit(ctx context.Context, caller auth.Identity, req SubmitRequest) (*models.Complaint, error) {
	if !caller.IsStudent() {
		return nil, apperr.Forbidden("Only students can submit complaints")
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	subject, description := req.Subject, req.Description

	student, err := s.students.GetByRollNumber(ctx, caller.RollNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Student not found")
	}
	if err != nil {
		s.log.Error("student lookup failed", zap.String("roll_number", caller.RollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	c := &models.Complaint{
		ID:           uuid.New(),
		ComplaintRef: s.newRef(),
		StudentID:    student.ID,
		Subject:      subject,
		Description:  description,
		Status:       models.ComplaintPending,
	}
	if err := s.complaints.Create(ctx, c); err != nil {
		s.log.Error("complaint insert failed", zap.String("roll_number", student.RollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	s.log.Info("complaint submitted",
		zap.String("complaint_ref", c.ComplaintRef),
		zap.String("roll_number", student.RollNumber),
	)
	s.publish(ctx, events.TopicComplaintSubmitted, student.RollNumber, events.ComplaintEvent{
		ComplaintRef: c.ComplaintRef,
		RollNumber:   student.RollNumber,
		Status:       string(c.Status),
		At:           c.CreatedAt,
	})
	return c, nil
}

func (s *Service) List(ctx context.Context, caller auth.Identity, status string) ([]models.Complaint, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can list complaints")
	}
	switch models.ComplaintStatus(status) {
	case "", "all", models.ComplaintPending, models.ComplaintResponded:
	default:
		return nil, apperr.Validation("status must be pending, responded or all")
	}

	list, err := s.complaints.List(ctx, status)
	if err != nil {
		s.log.Error("complaint listing failed", zap.Error(err))
		return nil, apperr.Server(err)
	}
	return list, nil
}

// Respond answers a pending complaint. A complaint is answered once.
func (s *Service) Respond(ctx context.Context, caller auth.Identity, ref, response string) (*models.Complaint, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can respond to complaints")
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, apperr.Validation("response is required")
	}

	err := s.complaints.Respond(ctx, ref, response, caller.ID, s.now().UTC())
	if errors.Is(err, repository.ErrAlreadyDecided) {
		// zero rows: either unknown or already answered
		if _, lookupErr := s.complaints.GetByRef(ctx, ref); errors.Is(lookupErr, repository.ErrNotFound) {
			return nil, apperr.NotFound("Complaint not found")
		}
		return nil, apperr.InvalidState("Complaint already responded")
	}
	if err != nil {
		s.log.Error("complaint response failed", zap.String("complaint_ref", ref), zap.Error(err))
		return nil, apperr.Server(err)
	}

	c, err := s.complaints.GetByRef(ctx, ref)
	if err != nil {
		s.log.Error("complaint reload failed", zap.String("complaint_ref", ref), zap.Error(err))
		return nil, apperr.Server(err)
	}

	roll := ""
	if student, err := s.students.GetByID(ctx, c.StudentID); err == nil {
		roll = student.RollNumber
	}
	s.log.Info("complaint responded",
		zap.String("complaint_ref", ref),
		zap.String("responder_id", caller.ID.String()),
	)
	s.publish(ctx, events.TopicComplaintResponded, roll, events.ComplaintEvent{
		ComplaintRef: c.ComplaintRef,
		RollNumber:   roll,
		Status:       string(c.Status),
		At:           c.UpdatedAt,
	})
	return c, nil
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if err := s.events.Publish(ctx, topic, key, event); err != nil {
		s.log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
