package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type docUpdate struct {
	id       string
	status   models.DocumentStatus
	remarks  string
	reviewer string
}

type mockDocumentRepo struct {
	documents  map[string]*models.AdmissionDocument
	aggregates map[string]models.DocumentAggregate
	updates    []docUpdate
	bulkIDs    []string
	created    []*models.AdmissionDocument
}

func (m *mockDocumentRepo) ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	var out []models.AdmissionDocument
	for _, d := range m.documents {
		if d.ApplicantID == applicantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error) {
	if d, ok := m.documents[id]; ok {
		out := *d
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) Create(ctx context.Context, document *models.AdmissionDocument) error {
	document.ID = "doc-new"
	m.created = append(m.created, document)
	return nil
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarks, reviewedBy string) error {
	if d, ok := m.documents[id]; ok {
		d.Status = status
	}
	m.updates = append(m.updates, docUpdate{id: id, status: status, remarks: remarks, reviewer: reviewedBy})
	return nil
}

func (m *mockDocumentRepo) BulkUpdateStatus(ctx context.Context, ids []string, status models.DocumentStatus, reviewedBy string) error {
	m.bulkIDs = append(m.bulkIDs, ids...)
	for _, id := range ids {
		if d, ok := m.documents[id]; ok {
			d.Status = status
		}
	}
	return nil
}

func (m *mockDocumentRepo) Aggregate(ctx context.Context, applicantID string) (models.DocumentAggregate, error) {
	return m.aggregates[applicantID], nil
}

type evaluation struct {
	applicantID string
	aggregate   models.DocumentAggregate
	verifiedNow []string
}

type mockDocumentWorkflow struct {
	evaluations []evaluation
	errs        map[string]error
}

func (m *mockDocumentWorkflow) HandleDocumentEvaluation(ctx context.Context, applicant *models.Applicant, aggregate models.DocumentAggregate, verifiedNow []string) (*models.WorkflowOutcome, error) {
	m.evaluations = append(m.evaluations, evaluation{applicantID: applicant.ID, aggregate: aggregate, verifiedNow: verifiedNow})
	if err, ok := m.errs[applicant.ID]; ok {
		return nil, err
	}
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: applicant.Status}, nil
}

func submittedDoc(id, applicantID string) *models.AdmissionDocument {
	return &models.AdmissionDocument{
		ID:           id,
		ApplicantID:  applicantID,
		DocumentType: "FORM_138",
		Status:       models.DocumentStatusSubmitted,
	}
}

func newDocumentFixture(repo *mockDocumentRepo, applicants *mockApplicantRepo) (*DocumentService, *mockDocumentWorkflow) {
	workflow := &mockDocumentWorkflow{}
	return NewDocumentService(repo, applicants, workflow, nil, nil), workflow
}

func TestDocumentVerify(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	applicants := &mockApplicantRepo{applicants: map[string]*models.Applicant{applicant.ID: applicant}}
	repo := &mockDocumentRepo{
		documents:  map[string]*models.AdmissionDocument{"d1": submittedDoc("d1", applicant.ID)},
		aggregates: map[string]models.DocumentAggregate{applicant.ID: {Total: 1, Verified: 1, AllVerified: true}},
	}
	svc, workflow := newDocumentFixture(repo, applicants)

	outcome, err := svc.Verify(context.Background(), models.ActorContext{UserID: "reviewer-1", Role: models.RoleOfficer}, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	require.Len(t, repo.updates, 1)
	assert.Equal(t, models.DocumentStatusVerified, repo.updates[0].status)
	assert.Equal(t, "reviewer-1", repo.updates[0].reviewer)
	require.Len(t, workflow.evaluations, 1)
	assert.Equal(t, []string{"d1"}, workflow.evaluations[0].verifiedNow)
	assert.True(t, workflow.evaluations[0].aggregate.AllVerified)
}

func TestDocumentVerifyAlreadyVerified(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	applicants := &mockApplicantRepo{applicants: map[string]*models.Applicant{applicant.ID: applicant}}
	doc := submittedDoc("d1", applicant.ID)
	doc.Status = models.DocumentStatusVerified
	repo := &mockDocumentRepo{documents: map[string]*models.AdmissionDocument{"d1": doc}}
	svc, workflow := newDocumentFixture(repo, applicants)

	outcome, err := svc.Verify(context.Background(), models.ActorContext{UserID: "reviewer-1"}, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.State)
	assert.Empty(t, repo.updates)
	assert.Empty(t, workflow.evaluations)
}

func TestDocumentVerifyUnknownDocument(t *testing.T) {
	svc, _ := newDocumentFixture(&mockDocumentRepo{documents: map[string]*models.AdmissionDocument{}}, &mockApplicantRepo{})

	_, err := svc.Verify(context.Background(), models.ActorContext{UserID: "reviewer-1"}, "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDocumentInvalidate(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	applicants := &mockApplicantRepo{applicants: map[string]*models.Applicant{applicant.ID: applicant}}
	repo := &mockDocumentRepo{
		documents:  map[string]*models.AdmissionDocument{"d1": submittedDoc("d1", applicant.ID)},
		aggregates: map[string]models.DocumentAggregate{applicant.ID: {Total: 3, Verified: 1, AnyInvalid: true}},
	}
	svc, workflow := newDocumentFixture(repo, applicants)

	_, err := svc.Invalidate(context.Background(), models.ActorContext{UserID: "reviewer-1"}, "d1", InvalidateDocumentRequest{Remarks: "blurry scan"})
	require.NoError(t, err)
	require.Len(t, repo.updates, 1)
	assert.Equal(t, models.DocumentStatusInvalid, repo.updates[0].status)
	assert.Equal(t, "blurry scan", repo.updates[0].remarks)
	require.Len(t, workflow.evaluations, 1)
	assert.Nil(t, workflow.evaluations[0].verifiedNow)
	assert.True(t, workflow.evaluations[0].aggregate.AnyInvalid)
}

func TestDocumentInvalidateRequiresRemarks(t *testing.T) {
	svc, _ := newDocumentFixture(&mockDocumentRepo{}, &mockApplicantRepo{})

	_, err := svc.Invalidate(context.Background(), models.ActorContext{UserID: "reviewer-1"}, "d1", InvalidateDocumentRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDocumentAddUnknownApplicant(t *testing.T) {
	svc, _ := newDocumentFixture(&mockDocumentRepo{}, &mockApplicantRepo{applicants: map[string]*models.Applicant{}})

	_, err := svc.Add(context.Background(), AddDocumentRequest{ApplicantID: "ghost", DocumentType: "FORM_138"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkVerifyGroupsByApplicant(t *testing.T) {
	a1 := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	a2 := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	a2.ID = "a2"
	applicants := &mockApplicantRepo{applicants: map[string]*models.Applicant{a1.ID: a1, a2.ID: a2}}

	verified := submittedDoc("d3", a2.ID)
	verified.Status = models.DocumentStatusVerified
	repo := &mockDocumentRepo{
		documents: map[string]*models.AdmissionDocument{
			"d1": submittedDoc("d1", a1.ID),
			"d2": submittedDoc("d2", a1.ID),
			"d3": verified,
			"d4": submittedDoc("d4", a2.ID),
		},
		aggregates: map[string]models.DocumentAggregate{
			a1.ID: {Total: 2, Verified: 2, AllVerified: true},
			a2.ID: {Total: 2, Verified: 2, AllVerified: true},
		},
	}
	svc, workflow := newDocumentFixture(repo, applicants)

	result, err := svc.BulkVerify(context.Background(), models.ActorContext{UserID: "reviewer-1"}, BulkVerifyRequest{DocumentIDs: []string{"d1", "d2", "d3", "d4"}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Verified)

	sort.Strings(repo.bulkIDs)
	assert.Equal(t, []string{"d1", "d2", "d4"}, repo.bulkIDs)

	require.Len(t, workflow.evaluations, 2)
	require.Len(t, result.Outcomes, 2)
	assert.Contains(t, result.Outcomes, a1.ID)
	assert.Contains(t, result.Outcomes, a2.ID)
}

func TestBulkVerifyEvaluationFailureDoesNotAbort(t *testing.T) {
	a1 := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	a2 := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	a2.ID = "a2"
	applicants := &mockApplicantRepo{applicants: map[string]*models.Applicant{a1.ID: a1, a2.ID: a2}}
	repo := &mockDocumentRepo{
		documents: map[string]*models.AdmissionDocument{
			"d1": submittedDoc("d1", a1.ID),
			"d2": submittedDoc("d2", a2.ID),
		},
		aggregates: map[string]models.DocumentAggregate{
			a1.ID: {Total: 1, Verified: 1, AllVerified: true},
			a2.ID: {Total: 1, Verified: 1, AllVerified: true},
		},
	}
	workflow := &mockDocumentWorkflow{errs: map[string]error{a1.ID: errors.New("evaluation failed")}}
	svc := NewDocumentService(repo, applicants, workflow, nil, nil)

	result, err := svc.BulkVerify(context.Background(), models.ActorContext{UserID: "reviewer-1"}, BulkVerifyRequest{DocumentIDs: []string{"d1", "d2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Verified)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes, a2.ID)
}
