package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slpk/loandocs/internal/submission/domain"
	surveydomain "github.com/slpk/loandocs/internal/survey/domain"
	termapp "github.com/slpk/loandocs/internal/term/application"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
)

var testTerm = termdomain.Term{AcademicYear: "2568", Number: "1"}

type fakeRecords struct {
	mu        sync.Mutex
	recs      map[string]*domain.Record
	createErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{recs: map[string]*domain.Record{}}
}

func key(t termdomain.Term, studentID string) string {
	return t.Key() + "/" + studentID
}

func (f *fakeRecords) Create(_ context.Context, t termdomain.Term, rec domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.recs[key(t, rec.StudentID)] = &rec
	return nil
}

func (f *fakeRecords) Get(_ context.Context, t termdomain.Term, studentID string) (*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key(t, studentID)]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) GetLegacy(context.Context, string) (*domain.Record, error) {
	return nil, domain.ErrRecordNotFound
}

func (f *fakeRecords) ListByTerm(_ context.Context, t termdomain.Term) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Record
	for k, rec := range f.recs {
		if strings.HasPrefix(k, t.Key()+"/") {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeRecords) Exists(_ context.Context, t termdomain.Term, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.recs[key(t, studentID)]
	return ok, nil
}

func (f *fakeRecords) LegacyExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeRecords) UpdateStatuses(_ context.Context, t termdomain.Term, studentID string, statuses map[string]domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key(t, studentID)]
	if !ok {
		return domain.ErrRecordNotFound
	}
	for reqID, ds := range statuses {
		rec.Statuses[reqID] = ds
	}
	return nil
}

func (f *fakeRecords) ReplaceUpload(_ context.Context, t termdomain.Term, studentID string, up domain.Upload, ds domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key(t, studentID)]
	if !ok {
		return domain.ErrRecordNotFound
	}
	replaced := false
	for i := range rec.Uploads {
		if rec.Uploads[i].RequirementID == up.RequirementID {
			rec.Uploads[i] = up
			replaced = true
		}
	}
	if !replaced {
		rec.Uploads = append(rec.Uploads, up)
	}
	rec.Statuses[up.RequirementID] = ds
	return nil
}

func (f *fakeRecords) Delete(_ context.Context, t termdomain.Term, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[key(t, studentID)]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(f.recs, key(t, studentID))
	return nil
}

func (f *fakeRecords) Watch(context.Context, termdomain.Term, string) (<-chan domain.Record, error) {
	ch := make(chan domain.Record)
	close(ch)
	return ch, nil
}

type fakeUsers struct {
	user        *domain.User
	markedTerm  string
	cleared     bool
	clearErr    error
	savedDrafts map[string][]domain.File
}

func (f *fakeUsers) Get(context.Context, string) (*domain.User, error) {
	cp := *f.user
	return &cp, nil
}

func (f *fakeUsers) SaveDrafts(_ context.Context, _ string, drafts map[string][]domain.File) error {
	f.savedDrafts = drafts
	f.user.Drafts = drafts
	return nil
}

func (f *fakeUsers) MarkSubmitted(_ context.Context, _ string, termKey string) error {
	f.markedTerm = termKey
	f.user.HasSubmittedDocuments = true
	f.user.Drafts = nil
	return nil
}

func (f *fakeUsers) ClearSubmission(context.Context, string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	f.user.HasSubmittedDocuments = false
	return nil
}

func (f *fakeUsers) KnownTerms(context.Context, string) ([]string, error) {
	return f.user.KnownTerms, nil
}

type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string]string
	failCopy   map[string]bool
	failDelete map[string]bool
	deleted    []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		objects:    map[string]string{},
		failCopy:   map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	return "https://blob.test/" + key, nil
}

func (f *fakeBlobs) Copy(_ context.Context, srcKey, dstKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy[srcKey] {
		return "", fmt.Errorf("copy of %s refused", srcKey)
	}
	f.objects[dstKey] = f.objects[srcKey]
	return "https://blob.test/" + dstKey, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.failDelete[key] {
		return fmt.Errorf("delete of %s refused", key)
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.test/presigned/" + key, nil
}

type fakeResolver struct {
	term    termdomain.Term
	open    bool
	loc     *termapp.Location
	findErr error
}

func (f *fakeResolver) CurrentTerm(context.Context) termdomain.Term { return f.term }
func (f *fakeResolver) WindowOpen(context.Context) bool             { return f.open }
func (f *fakeResolver) FindSubmission(context.Context, string) (*termapp.Location, error) {
	return f.loc, f.findErr
}

type publishedEvent struct {
	topic string
	key   string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{topic: topic, key: key})
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.topic
	}
	return out
}

type fakeOCR struct {
	result *domain.OCRResult
	err    error
}

func (f *fakeOCR) Extract(context.Context, string, []byte) (*domain.OCRResult, error) {
	return f.result, f.err
}

// guardianAnswer keeps the required set small and deterministic.
var guardianAnswer = surveydomain.Answer{
	FamilyStatus:      surveydomain.FamilyGuardian,
	GuardianIncome:    surveydomain.HasIncome,
	ParentLegalStatus: surveydomain.NoDocument,
}

func fullDrafts(answer surveydomain.Answer, blobs *fakeBlobs) map[string][]domain.File {
	drafts := map[string][]domain.File{}
	for _, r := range surveydomain.DeriveRequirements(answer) {
		if !r.Required {
			continue
		}
		key := "draft_documents/s1/" + r.ID + "_0"
		blobs.objects[key] = r.ID
		drafts[r.ID] = []domain.File{{Name: r.ID + ".jpg", Key: key, ContentType: "image/jpeg"}}
	}
	return drafts
}

type fixture struct {
	svc      *Service
	records  *fakeRecords
	users    *fakeUsers
	blobs    *fakeBlobs
	resolver *fakeResolver
	events   *fakePublisher
}

func newFixture(user *domain.User) *fixture {
	records := newFakeRecords()
	users := &fakeUsers{user: user}
	blobs := newFakeBlobs()
	resolver := &fakeResolver{term: testTerm, open: true}
	events := &fakePublisher{}
	svc := NewService(records, users, blobs, nil, events, resolver, surveydomain.VariantPerParent)
	return &fixture{svc: svc, records: records, users: users, blobs: blobs, resolver: resolver, events: events}
}

func TestSubmitSuccess(t *testing.T) {
	user := &domain.User{StudentID: "s1", Name: "Somchai Jaidee", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)

	rec, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, "2568", rec.AcademicYear)
	assert.Equal(t, "1", rec.Term)
	assert.Len(t, rec.Uploads, len(user.Drafts))
	for _, ds := range rec.Statuses {
		assert.Equal(t, domain.StatusPending, ds.Status)
		assert.Equal(t, 1, ds.FileCount)
	}
	assert.Equal(t, domain.AggregateInReview, rec.AggregateStatus())

	for _, up := range rec.Uploads {
		for _, f := range up.Files {
			assert.True(t, strings.HasPrefix(f.Key, "student_documents/Somchai_Jaidee/2568/term_1/"), f.Key)
			assert.Contains(t, fx.blobs.objects, f.Key)
		}
	}

	stored, err := fx.records.Get(context.Background(), testTerm, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec.StudentID, stored.StudentID)

	assert.Equal(t, "2568_1", fx.users.markedTerm)
	assert.Equal(t, []string{TopicSubmissionReceived}, fx.events.topics())
}

func TestSubmitReportsMissingRequired(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	delete(user.Drafts, surveydomain.ReqForm101)
	delete(user.Drafts, surveydomain.ReqGuardianConsent)

	_, err := fx.svc.Submit(context.Background(), "s1")
	var missing *domain.MissingRequiredError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{surveydomain.ReqForm101, surveydomain.ReqGuardianConsent}, missing.Missing)

	exists, _ := fx.records.Exists(context.Background(), testTerm, "s1")
	assert.False(t, exists)
}

func TestSubmitAbortsWhenACopyFails(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	failKey := user.Drafts[surveydomain.ReqVolunteerDoc][0].Key
	fx.blobs.failCopy[failKey] = true

	_, err := fx.svc.Submit(context.Background(), "s1")
	var aborted *domain.SubmitError
	require.ErrorAs(t, err, &aborted)
	require.Len(t, aborted.Failures, 1)
	assert.Equal(t, surveydomain.ReqVolunteerDoc, aborted.Failures[0].RequirementID)

	// Nothing persisted, nothing left in the final area.
	exists, _ := fx.records.Exists(context.Background(), testTerm, "s1")
	assert.False(t, exists)
	assert.Empty(t, fx.users.markedTerm)
	for key := range fx.blobs.objects {
		assert.False(t, strings.HasPrefix(key, "student_documents/"), key)
	}
}

func TestSubmitWhenWindowClosed(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	fx.resolver.open = false

	_, err := fx.svc.Submit(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestSubmitTwiceInSameTerm(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)

	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)

	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err = fx.svc.Submit(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
}

func TestSubmitWithoutSurvey(t *testing.T) {
	fx := newFixture(&domain.User{StudentID: "s1"})
	_, err := fx.svc.Submit(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrSurveyIncomplete)
}

func TestAttachDraftEnforcesFileCap(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer, Drafts: map[string][]domain.File{}}
	fx := newFixture(user)

	for i := 0; i < 4; i++ {
		_, err := fx.svc.AttachDraft(context.Background(), "s1", surveydomain.ReqForm101, DraftInput{
			Name: fmt.Sprintf("page%d.jpg", i), ContentType: "image/jpeg", Data: []byte("x"),
		})
		require.NoError(t, err)
	}

	_, err := fx.svc.AttachDraft(context.Background(), "s1", surveydomain.ReqForm101, DraftInput{
		Name: "page5.jpg", ContentType: "image/jpeg", Data: []byte("x"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 4")
}

func TestAttachDraftRejectsInapplicableRequirement(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)

	_, err := fx.svc.AttachDraft(context.Background(), "s1", surveydomain.ReqFatherConsent, DraftInput{
		Name: "consent.jpg", ContentType: "image/jpeg", Data: []byte("x"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not apply")
}

func TestRemoveDraftKeepsOrder(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer, Drafts: map[string][]domain.File{
		surveydomain.ReqForm101: {
			{Name: "a.jpg", Key: "draft/a"},
			{Name: "b.jpg", Key: "draft/b"},
			{Name: "c.jpg", Key: "draft/c"},
		},
	}}
	fx := newFixture(user)
	fx.blobs.failDelete["draft/b"] = true

	err := fx.svc.RemoveDraft(context.Background(), "s1", surveydomain.ReqForm101, 1)
	require.NoError(t, err)

	files := fx.users.savedDrafts[surveydomain.ReqForm101]
	require.Len(t, files, 2)
	assert.Equal(t, "a.jpg", files[0].Name)
	assert.Equal(t, "c.jpg", files[1].Name)
}

func TestRemoveDraftOutOfRange(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)

	err := fx.svc.RemoveDraft(context.Background(), "s1", surveydomain.ReqForm101, 0)
	assert.Error(t, err)
}

func TestReviewManyUpdatesAllStatuses(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)

	err = fx.svc.ReviewMany(context.Background(), testTerm, "s1", "officer-7", []ReviewInput{
		{RequirementID: surveydomain.ReqForm101, Status: domain.StatusApproved},
		{RequirementID: surveydomain.ReqVolunteerDoc, Status: domain.StatusRejected, Comments: "blurry scan"},
	})
	require.NoError(t, err)

	rec, err := fx.records.Get(context.Background(), testTerm, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, rec.Statuses[surveydomain.ReqForm101].Status)
	assert.Equal(t, "officer-7", rec.Statuses[surveydomain.ReqForm101].ReviewedBy)
	assert.Equal(t, domain.StatusRejected, rec.Statuses[surveydomain.ReqVolunteerDoc].Status)
	assert.Equal(t, "blurry scan", rec.Statuses[surveydomain.ReqVolunteerDoc].Comments)
	assert.Equal(t, 1, rec.Statuses[surveydomain.ReqForm101].FileCount)
}

func TestReviewRejectsBadInput(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)

	err = fx.svc.Review(context.Background(), testTerm, "s1", "officer-7", ReviewInput{
		RequirementID: surveydomain.ReqForm101, Status: "maybe",
	})
	assert.Error(t, err)

	err = fx.svc.Review(context.Background(), testTerm, "s1", "officer-7", ReviewInput{
		RequirementID: "no_such_doc", Status: domain.StatusApproved,
	})
	assert.Error(t, err)
}

func approveAll(t *testing.T, fx *fixture) {
	t.Helper()
	rec, err := fx.records.Get(context.Background(), testTerm, "s1")
	require.NoError(t, err)
	var items []ReviewInput
	for reqID := range rec.Statuses {
		items = append(items, ReviewInput{RequirementID: reqID, Status: domain.StatusApproved})
	}
	require.NoError(t, fx.svc.ReviewMany(context.Background(), testTerm, "s1", "officer-7", items))
}

func TestFullyApproved(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)
	fx.resolver.loc = &termapp.Location{Term: testTerm}

	ok, err := fx.svc.FullyApproved(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	approveAll(t, fx)

	ok, err = fx.svc.FullyApproved(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFullyApprovedWithoutRecord(t *testing.T) {
	fx := newFixture(&domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer})
	ok, err := fx.svc.FullyApproved(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetDeletesRecordDespiteBlobFailures(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	rec, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)
	fx.resolver.loc = &termapp.Location{Term: testTerm}
	fx.blobs.failDelete[rec.Uploads[0].Files[0].Key] = true

	err = fx.svc.Reset(context.Background(), "s1")
	require.NoError(t, err)

	exists, _ := fx.records.Exists(context.Background(), testTerm, "s1")
	assert.False(t, exists)
	assert.True(t, fx.users.cleared)
	assert.Contains(t, fx.events.topics(), TopicSubmissionReset)
}

func TestResetSurfacesFlagClearFailure(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)
	fx.resolver.loc = &termapp.Location{Term: testTerm}
	fx.users.clearErr = errors.New("users collection unavailable")

	err = fx.svc.Reset(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear submission flags")

	// The record is gone; the error tells the caller to retry the clear.
	exists, _ := fx.records.Exists(context.Background(), testTerm, "s1")
	assert.False(t, exists)
	assert.False(t, fx.users.cleared)
}

func TestResetWithoutRecord(t *testing.T) {
	fx := newFixture(&domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer})
	err := fx.svc.Reset(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestReUploadRejectedDocument(t *testing.T) {
	user := &domain.User{StudentID: "s1", Name: "Somchai Jaidee", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	_, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)
	fx.resolver.loc = &termapp.Location{Term: testTerm}

	// Not yet rejected.
	err = fx.svc.ReUpload(context.Background(), "s1", surveydomain.ReqForm101, []DraftInput{
		{Name: "new.jpg", ContentType: "image/jpeg", Data: []byte("x")},
	})
	assert.ErrorIs(t, err, domain.ErrNotRejected)

	require.NoError(t, fx.svc.Review(context.Background(), testTerm, "s1", "officer-7", ReviewInput{
		RequirementID: surveydomain.ReqForm101, Status: domain.StatusRejected, Comments: "unreadable",
	}))

	err = fx.svc.ReUpload(context.Background(), "s1", surveydomain.ReqForm101, []DraftInput{
		{Name: "new.jpg", ContentType: "image/jpeg", Data: []byte("x")},
		{Name: "new2.jpg", ContentType: "image/jpeg", Data: []byte("y")},
	})
	require.NoError(t, err)

	rec, err := fx.records.Get(context.Background(), testTerm, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, rec.Statuses[surveydomain.ReqForm101].Status)
	assert.Equal(t, 2, rec.Statuses[surveydomain.ReqForm101].FileCount)
	require.Len(t, rec.Upload(surveydomain.ReqForm101).Files, 2)
	assert.Equal(t, "new.jpg", rec.Upload(surveydomain.ReqForm101).Files[0].Name)
}

func TestStats(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	delete(user.Drafts, surveydomain.ReqVolunteerDoc)

	stats, err := fx.svc.Stats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, stats.TotalRequired-1, stats.Uploaded)
	assert.Equal(t, []string{surveydomain.ReqVolunteerDoc}, stats.MissingRequired)
	assert.False(t, stats.ReadyToSubmit)
}

func TestFileURL(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)
	user.Drafts = fullDrafts(guardianAnswer, fx.blobs)
	rec, err := fx.svc.Submit(context.Background(), "s1")
	require.NoError(t, err)

	url, err := fx.svc.FileURL(context.Background(), testTerm, "s1", surveydomain.ReqForm101, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/presigned/"+rec.Upload(surveydomain.ReqForm101).Files[0].Key, url)

	_, err = fx.svc.FileURL(context.Background(), testTerm, "s1", surveydomain.ReqForm101, 3)
	assert.Error(t, err)

	_, err = fx.svc.FileURL(context.Background(), testTerm, "s1", "no_such_doc", 0)
	assert.Error(t, err)
}

func TestVerifyDocument(t *testing.T) {
	user := &domain.User{StudentID: "s1", SurveyAnswer: guardianAnswer}
	fx := newFixture(user)

	// No collaborator configured.
	check := fx.svc.VerifyDocument(context.Background(), "form.jpg", []byte("x"), []string{"101"})
	assert.True(t, check.Skipped)

	svc := NewService(fx.records, fx.users, fx.blobs, &fakeOCR{err: errors.New("down")}, fx.events, fx.resolver, surveydomain.VariantPerParent)
	check = svc.VerifyDocument(context.Background(), "form.jpg", []byte("x"), []string{"101"})
	assert.True(t, check.Skipped)

	svc = NewService(fx.records, fx.users, fx.blobs, &fakeOCR{result: &domain.OCRResult{Success: true, Text: "form 101 application"}}, fx.events, fx.resolver, surveydomain.VariantPerParent)
	check = svc.VerifyDocument(context.Background(), "form.jpg", []byte("x"), []string{"101"})
	assert.False(t, check.Skipped)
	assert.True(t, check.Matched)

	check = svc.VerifyDocument(context.Background(), "form.jpg", []byte("x"), []string{"102"})
	assert.False(t, check.Matched)
}
