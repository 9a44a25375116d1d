package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
	"github.com/campuside/admissions-api/pkg/jobs"
	"github.com/campuside/admissions-api/pkg/mailer"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id string) error
}

type notificationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// mailJob is the payload carried through the dispatch queue.
type mailJob struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// NotificationService delivers in-app notifications and fans mail out through
// an asynchronous queue. Delivery is at-least-once and never blocks the
// workflow mutation that triggered it.
type NotificationService struct {
	repo   notificationRepository
	users  notificationUserReader
	mail   mailer.Mailer
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationRepository, users notificationUserReader, mail mailer.Mailer, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, users: users, mail: mail, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleMailJob, queueCfg)
	return s
}

// Start begins asynchronous mail dispatch.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch queue.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) handleMailJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(mailJob)
	if !ok {
		s.logger.Error("unexpected mail job payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.mail == nil {
		return nil
	}
	return s.mail.Send(ctx, mailer.Message{
		ToName:  payload.ToName,
		ToEmail: payload.ToEmail,
		Subject: payload.Subject,
		Body:    payload.Body,
	})
}

func (s *NotificationService) enqueueMail(toName, toEmail, subject, body string) {
	if toEmail == "" {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "mail",
		Payload: mailJob{ToName: toName, ToEmail: toEmail, Subject: subject, Body: body},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue mail", zap.String("to", toEmail), zap.Error(err))
	}
}

// SendToUser records an in-app notification for one user and mails them.
func (s *NotificationService) SendToUser(ctx context.Context, userID, title, body, link string) {
	if err := s.repo.Create(ctx, &models.Notification{
		UserID: &userID,
		Title:  title,
		Body:   body,
		Link:   link,
	}); err != nil {
		s.logger.Warn("failed to store user notification", zap.String("user_id", userID), zap.Error(err))
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipient", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.enqueueMail(user.FullName, user.Email, title, body)
}

// SendToRole records one role-addressed notification and mails every active
// holder of the role.
func (s *NotificationService) SendToRole(ctx context.Context, role models.UserRole, title, body, link string) {
	if err := s.repo.Create(ctx, &models.Notification{
		Role:  &role,
		Title: title,
		Body:  body,
		Link:  link,
	}); err != nil {
		s.logger.Warn("failed to store role notification", zap.String("role", string(role)), zap.Error(err))
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		s.logger.Warn("failed to resolve role recipients", zap.String("role", string(role)), zap.Error(err))
		return
	}
	for _, u := range users {
		s.enqueueMail(u.FullName, u.Email, title, body)
	}
}

// SendEmail mails an arbitrary recipient without an in-app record. Used for
// applicants, who have no user account until they enroll.
func (s *NotificationService) SendEmail(name, email, subject, body string) {
	s.enqueueMail(name, email, subject, body)
}

// List returns the notifications visible to a user.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead flags a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to mark notification %s read", id))
	}
	return nil
}
