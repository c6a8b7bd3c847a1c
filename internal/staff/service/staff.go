package service

import (
	"context"
	"strconv"

	"github.com/wardflow/wardflow-backend/internal/staff/repository"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
)

// StaffService handles staff directory business logic
type StaffService struct {
	repo      *repository.StaffRepository
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStaffService creates a new staff service
func NewStaffService(repo *repository.StaffRepository, publisher *messaging.Publisher, log *logger.Logger) *StaffService {
	return &StaffService{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// Create creates a new staff member
func (s *StaffService) Create(ctx context.Context, member *repository.StaffMember) error {
	member.IsActive = true
	if err := s.repo.Create(ctx, member); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventStaffCreated, member)
	return nil
}

// Get gets a staff member by ID
func (s *StaffService) Get(ctx context.Context, id string) (*repository.StaffMember, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists staff members with filters and pagination
func (s *StaffService) List(ctx context.Context, page, perPage int, filter repository.StaffFilter) ([]*repository.StaffMember, int64, error) {
	return s.repo.List(ctx, page, perPage, filter)
}

// Update updates a staff member's profile
func (s *StaffService) Update(ctx context.Context, member *repository.StaffMember) (*repository.StaffMember, error) {
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventStaffUpdated, updated)
	return updated, nil
}

// Archive soft-archives a staff member
func (s *StaffService) Archive(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventStaffArchived, &repository.StaffMember{ID: id})
	return nil
}

// Restore reverses a soft archive
func (s *StaffService) Restore(ctx context.Context, id string) (*repository.StaffMember, error) {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Export flattens the full directory into tabular rows for download
func (s *StaffService) Export(ctx context.Context) ([]string, [][]string, error) {
	members, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	headers := []string{"Name", "Role", "Specialty", "Department", "Email", "Phone", "Active"}
	rows := make([][]string, len(members))
	for i, m := range members {
		rows[i] = []string{
			m.Name,
			m.Role,
			m.Specialty,
			m.Department,
			m.Email,
			m.Phone,
			strconv.FormatBool(m.IsActive),
		}
	}

	return headers, rows, nil
}

func (s *StaffService) publish(ctx context.Context, eventType string, member *repository.StaffMember) {
	if s.publisher == nil {
		return
	}

	data := messaging.StaffMemberEvent{
		StaffID:    member.ID,
		Name:       member.Name,
		Department: member.Department,
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Error().Err(err).Str("staff_id", member.ID).Msg("failed to publish staff event")
	}
}
