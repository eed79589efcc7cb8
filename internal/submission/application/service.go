// Package application implements the submission lifecycle: draft uploads,
// the final submit, officer review, resets and live status watching.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/slpk/loandocs/internal/submission/domain"
	surveydomain "github.com/slpk/loandocs/internal/survey/domain"
	termapp "github.com/slpk/loandocs/internal/term/application"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
	"github.com/slpk/loandocs/pkg/logger"
)

// Event topics published by this service.
const (
	TopicSubmissionReceived = "loandocs.submission.received"
	TopicDocumentReviewed   = "loandocs.document.reviewed"
	TopicSubmissionReset    = "loandocs.submission.reset"
)

// copyWorkers bounds the fan-out of blob copies during a submit.
const copyWorkers = 8

// TermResolver is the slice of the term resolver this service needs.
type TermResolver interface {
	CurrentTerm(ctx context.Context) termdomain.Term
	WindowOpen(ctx context.Context) bool
	FindSubmission(ctx context.Context, studentID string) (*termapp.Location, error)
}

// Service orchestrates the submission lifecycle.
type Service struct {
	records  domain.Repository
	users    domain.UserRepository
	blobs    domain.BlobStore
	ocr      domain.OCRClient
	events   domain.EventPublisher
	resolver TermResolver
	variant  surveydomain.RuleVariant
}

// NewService wires the submission service.
func NewService(
	records domain.Repository,
	users domain.UserRepository,
	blobs domain.BlobStore,
	ocr domain.OCRClient,
	events domain.EventPublisher,
	resolver TermResolver,
	variant surveydomain.RuleVariant,
) *Service {
	return &Service{
		records:  records,
		users:    users,
		blobs:    blobs,
		ocr:      ocr,
		events:   events,
		resolver: resolver,
		variant:  variant,
	}
}

// DraftInput is one file offered for upload.
type DraftInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachDraft stores a file in the staging area and records it on the
// applicant profile. The content type is sniffed when the client offers none.
func (s *Service) AttachDraft(ctx context.Context, studentID, reqID string, in DraftInput) (*domain.File, error) {
	user, err := s.users.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", studentID, err)
	}

	reqs := surveydomain.DeriveRequirementsVariant(user.SurveyAnswer, s.variant)
	req := findRequirement(reqs, reqID)
	if req == nil {
		return nil, fmt.Errorf("requirement %q does not apply to this applicant", reqID)
	}

	drafts := user.Drafts
	if drafts == nil {
		drafts = map[string][]domain.File{}
	}
	if req.MaxFiles > 0 && len(drafts[reqID]) >= req.MaxFiles {
		return nil, fmt.Errorf("requirement %q accepts at most %d files", reqID, req.MaxFiles)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(in.Data).String()
	}

	now := time.Now()
	key := domain.DraftKey(studentID, reqID, len(drafts[reqID]), in.Name, now)
	url, err := s.blobs.Put(ctx, key, in.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store draft %s: %w", key, err)
	}

	file := domain.File{
		Name:        in.Name,
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(in.Data)),
		UploadedAt:  now,
	}
	drafts[reqID] = append(drafts[reqID], file)

	if err := s.users.SaveDrafts(ctx, studentID, drafts); err != nil {
		return nil, fmt.Errorf("save drafts for %s: %w", studentID, err)
	}
	return &file, nil
}

// RemoveDraft removes one staged file. Later files of the same requirement
// keep their order. The blob delete is best effort.
func (s *Service) RemoveDraft(ctx context.Context, studentID, reqID string, index int) error {
	user, err := s.users.Get(ctx, studentID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", studentID, err)
	}
	files := user.Drafts[reqID]
	if index < 0 || index >= len(files) {
		return fmt.Errorf("no draft file at index %d for %q", index, reqID)
	}

	if err := s.blobs.Delete(ctx, files[index].Key); err != nil {
		logger.Warn(ctx, "draft blob delete failed, continuing",
			"student_id", studentID,
			"key", files[index].Key,
			"error", err,
		)
	}

	files = append(files[:index], files[index+1:]...)
	if len(files) == 0 {
		delete(user.Drafts, reqID)
	} else {
		user.Drafts[reqID] = files
	}
	return s.users.SaveDrafts(ctx, studentID, user.Drafts)
}

// UploadStats summarizes draft progress against the derived requirements.
type UploadStats struct {
	TotalRequired   int      `json:"totalRequired"`
	Uploaded        int      `json:"uploaded"`
	MissingRequired []string `json:"missingRequired"`
	ReadyToSubmit   bool     `json:"readyToSubmit"`
}

// Stats reports how far the applicant's drafts cover the requirements.
func (s *Service) Stats(ctx context.Context, studentID string) (*UploadStats, error) {
	user, err := s.users.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", studentID, err)
	}
	reqs := surveydomain.DeriveRequirementsVariant(user.SurveyAnswer, s.variant)

	stats := &UploadStats{}
	for _, r := range reqs {
		if !r.Required {
			continue
		}
		stats.TotalRequired++
		if len(user.Drafts[r.ID]) > 0 {
			stats.Uploaded++
		} else {
			stats.MissingRequired = append(stats.MissingRequired, r.ID)
		}
	}
	stats.ReadyToSubmit = len(stats.MissingRequired) == 0 && stats.TotalRequired > 0
	return stats, nil
}

// Submit promotes the staged drafts into a term record. Either every file
// lands in its final location and exactly one record is created, or nothing
// changes and the caller gets the per-file failures.
func (s *Service) Submit(ctx context.Context, studentID string) (*domain.Record, error) {
	if !s.resolver.WindowOpen(ctx) {
		return nil, domain.ErrWindowClosed
	}

	user, err := s.users.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", studentID, err)
	}
	if user.SurveyAnswer.IsZero() {
		return nil, domain.ErrSurveyIncomplete
	}

	term := s.resolver.CurrentTerm(ctx)
	exists, err := s.records.Exists(ctx, term, studentID)
	if err != nil {
		return nil, fmt.Errorf("check existing record: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadySubmitted
	}

	reqs := surveydomain.DeriveRequirementsVariant(user.SurveyAnswer, s.variant)
	var missing []string
	for _, r := range reqs {
		if r.Required && len(user.Drafts[r.ID]) == 0 {
			missing = append(missing, r.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MissingRequiredError{Missing: missing}
	}

	uploads, failures := s.promoteDrafts(ctx, user, reqs, term)
	if len(failures) > 0 {
		s.cleanupFiles(ctx, uploads)
		return nil, &domain.SubmitError{Failures: failures}
	}

	now := time.Now()
	statuses := make(map[string]domain.DocumentStatus, len(uploads))
	for _, up := range uploads {
		statuses[up.RequirementID] = domain.DocumentStatus{
			Status:    domain.StatusPending,
			FileCount: len(up.Files),
			UpdatedAt: now,
		}
	}

	rec := domain.Record{
		StudentID:    studentID,
		StudentName:  user.Name,
		AcademicYear: term.AcademicYear,
		Term:         term.Number,
		SurveyAnswer: user.SurveyAnswer,
		Uploads:      uploads,
		Statuses:     statuses,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if err := s.records.Create(ctx, term, rec); err != nil {
		s.cleanupFiles(ctx, uploads)
		return nil, fmt.Errorf("create submission record: %w", err)
	}

	if err := s.users.MarkSubmitted(ctx, studentID, term.Key()); err != nil {
		// The record is authoritative; the profile flags catch up on retry.
		logger.Error(ctx, "failed to mark user as submitted",
			"student_id", studentID,
			"term", term.Key(),
			"error", err,
		)
	}

	s.publish(ctx, TopicSubmissionReceived, studentID, map[string]any{
		"studentId":    studentID,
		"academicYear": term.AcademicYear,
		"term":         term.Number,
		"documents":    len(uploads),
		"submittedAt":  now,
	})

	logger.Info(ctx, "documents submitted",
		"student_id", studentID,
		"term", term.Key(),
		"documents", len(uploads),
	)
	return &rec, nil
}

// promoteDrafts copies every draft blob to its final key concurrently and
// returns the resulting uploads plus any per-file failures.
func (s *Service) promoteDrafts(ctx context.Context, user *domain.User, reqs []surveydomain.Requirement, term termdomain.Term) ([]domain.Upload, []domain.FileError) {
	type job struct {
		reqID string
		idx   int
		src   domain.File
		dst   string
	}
	now := time.Now()

	var jobs []job
	for _, r := range reqs {
		for i, f := range user.Drafts[r.ID] {
			jobs = append(jobs, job{
				reqID: r.ID,
				idx:   i,
				src:   f,
				dst:   domain.FinalKey(user.Name, term, r.ID, i, f.Name, now),
			})
		}
	}

	type result struct {
		job job
		url string
		err error
	}
	results := make([]result, len(jobs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, copyWorkers)
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			url, err := s.blobs.Copy(ctx, j.src.Key, j.dst)
			results[i] = result{job: j, url: url, err: err}
		}(i, j)
	}
	wg.Wait()

	byReq := map[string][]domain.File{}
	var failures []domain.FileError
	var order []string
	seen := map[string]bool{}
	for _, res := range results {
		if res.err != nil {
			failures = append(failures, domain.FileError{
				RequirementID: res.job.reqID,
				FileName:      res.job.src.Name,
				Reason:        res.err.Error(),
			})
			continue
		}
		f := res.job.src
		f.Key = res.job.dst
		f.URL = res.url
		f.UploadedAt = now
		byReq[res.job.reqID] = append(byReq[res.job.reqID], f)
		if !seen[res.job.reqID] {
			seen[res.job.reqID] = true
			order = append(order, res.job.reqID)
		}
	}

	// Results keep job order, so files stay in their original upload order.
	var uploads []domain.Upload
	for _, reqID := range order {
		uploads = append(uploads, domain.Upload{RequirementID: reqID, Files: byReq[reqID]})
	}
	return uploads, failures
}

// cleanupFiles best-effort deletes already promoted files after an abort.
func (s *Service) cleanupFiles(ctx context.Context, uploads []domain.Upload) {
	for _, up := range uploads {
		for _, f := range up.Files {
			if err := s.blobs.Delete(ctx, f.Key); err != nil {
				logger.Warn(ctx, "orphaned blob could not be deleted",
					"key", f.Key,
					"error", err,
				)
			}
		}
	}
}

// StatusView is the applicant-facing submission status.
type StatusView struct {
	Record    *domain.Record         `json:"record"`
	Aggregate domain.AggregateStatus `json:"aggregateStatus"`
	Term      termdomain.Term        `json:"termFound"`
	Legacy    bool                   `json:"legacy,omitempty"`
}

// Status locates and returns the student's submission, wherever it lives.
func (s *Service) Status(ctx context.Context, studentID string) (*StatusView, error) {
	loc, err := s.resolver.FindSubmission(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, domain.ErrRecordNotFound
	}

	var rec *domain.Record
	if loc.Legacy {
		rec, err = s.records.GetLegacy(ctx, studentID)
	} else {
		rec, err = s.records.Get(ctx, loc.Term, studentID)
	}
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Record:    rec,
		Aggregate: rec.AggregateStatus(),
		Term:      loc.Term,
		Legacy:    loc.Legacy,
	}, nil
}

// FullyApproved reports whether every submitted document has been approved.
// Used as the gate before post-approval processing starts.
func (s *Service) FullyApproved(ctx context.Context, studentID string) (bool, error) {
	view, err := s.Status(ctx, studentID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return view.Aggregate == domain.AggregateApproved, nil
}

// ListByTerm returns every submission of the given term for the officer
// console.
func (s *Service) ListByTerm(ctx context.Context, t termdomain.Term) ([]domain.Record, error) {
	return s.records.ListByTerm(ctx, t)
}

// fileURLTTL bounds how long a generated document link stays valid.
const fileURLTTL = 15 * time.Minute

// FileURL returns a time-limited download link for one submitted file, for
// the reviewer's document viewer.
func (s *Service) FileURL(ctx context.Context, t termdomain.Term, studentID, reqID string, index int) (string, error) {
	rec, err := s.records.Get(ctx, t, studentID)
	if err != nil {
		return "", err
	}
	up := rec.Upload(reqID)
	if up == nil {
		return "", fmt.Errorf("submission has no document %q", reqID)
	}
	if index < 0 || index >= len(up.Files) {
		return "", fmt.Errorf("no file at index %d for %q", index, reqID)
	}
	return s.blobs.Presign(ctx, up.Files[index].Key, fileURLTTL)
}

// ReviewInput is one officer decision about one document.
type ReviewInput struct {
	RequirementID string        `json:"requirementId"`
	Status        domain.Status `json:"status"`
	Comments      string        `json:"comments"`
}

// Review applies one decision to one document of a submission.
func (s *Service) Review(ctx context.Context, t termdomain.Term, studentID, reviewer string, in ReviewInput) error {
	return s.ReviewMany(ctx, t, studentID, reviewer, []ReviewInput{in})
}

// ReviewMany applies a batch of decisions to one submission in a single
// update. Invalid items fail the whole call before anything is written.
func (s *Service) ReviewMany(ctx context.Context, t termdomain.Term, studentID, reviewer string, items []ReviewInput) error {
	if len(items) == 0 {
		return fmt.Errorf("no review decisions given")
	}

	rec, err := s.records.Get(ctx, t, studentID)
	if err != nil {
		return err
	}

	now := time.Now()
	statuses := make(map[string]domain.DocumentStatus, len(items))
	for _, in := range items {
		if !in.Status.Valid() {
			return fmt.Errorf("unknown review status %q", in.Status)
		}
		prev, ok := rec.Statuses[in.RequirementID]
		if !ok {
			return fmt.Errorf("submission has no document %q", in.RequirementID)
		}
		reviewedAt := now
		statuses[in.RequirementID] = domain.DocumentStatus{
			Status:     in.Status,
			Comments:   in.Comments,
			ReviewedBy: reviewer,
			ReviewedAt: &reviewedAt,
			FileCount:  prev.FileCount,
			UpdatedAt:  now,
		}
	}

	if err := s.records.UpdateStatuses(ctx, t, studentID, statuses); err != nil {
		return fmt.Errorf("update statuses for %s: %w", studentID, err)
	}

	for reqID, ds := range statuses {
		s.publish(ctx, TopicDocumentReviewed, studentID, map[string]any{
			"studentId":     studentID,
			"academicYear":  t.AcademicYear,
			"term":          t.Number,
			"requirementId": reqID,
			"status":        ds.Status,
			"reviewedBy":    reviewer,
		})
	}
	return nil
}

// ReUpload replaces the files of a rejected document and sends it back into
// review. The replaced blobs are deleted best effort.
func (s *Service) ReUpload(ctx context.Context, studentID, reqID string, files []DraftInput) error {
	if len(files) == 0 {
		return fmt.Errorf("no files given")
	}

	loc, err := s.resolver.FindSubmission(ctx, studentID)
	if err != nil {
		return err
	}
	if loc == nil || loc.Legacy {
		return domain.ErrRecordNotFound
	}

	rec, err := s.records.Get(ctx, loc.Term, studentID)
	if err != nil {
		return err
	}
	prev, ok := rec.Statuses[reqID]
	if !ok {
		return fmt.Errorf("submission has no document %q", reqID)
	}
	if prev.Status != domain.StatusRejected {
		return domain.ErrNotRejected
	}

	now := time.Now()
	newFiles := make([]domain.File, 0, len(files))
	for i, in := range files {
		contentType := in.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(in.Data).String()
		}
		key := domain.FinalKey(rec.StudentName, loc.Term, reqID, i, in.Name, now)
		url, err := s.blobs.Put(ctx, key, in.Data, contentType)
		if err != nil {
			// Abort and drop what was written so far.
			for _, f := range newFiles {
				if derr := s.blobs.Delete(ctx, f.Key); derr != nil {
					logger.Warn(ctx, "orphaned blob could not be deleted", "key", f.Key, "error", derr)
				}
			}
			return fmt.Errorf("store replacement %s: %w", key, err)
		}
		newFiles = append(newFiles, domain.File{
			Name:        in.Name,
			Key:         key,
			URL:         url,
			ContentType: contentType,
			Size:        int64(len(in.Data)),
			UploadedAt:  now,
		})
	}

	ds := domain.DocumentStatus{
		Status:    domain.StatusPending,
		FileCount: len(newFiles),
		UpdatedAt: now,
	}
	if err := s.records.ReplaceUpload(ctx, loc.Term, studentID, domain.Upload{RequirementID: reqID, Files: newFiles}, ds); err != nil {
		return fmt.Errorf("replace upload %s/%s: %w", studentID, reqID, err)
	}

	if old := rec.Upload(reqID); old != nil {
		for _, f := range old.Files {
			if err := s.blobs.Delete(ctx, f.Key); err != nil {
				logger.Warn(ctx, "replaced blob could not be deleted", "key", f.Key, "error", err)
			}
		}
	}
	return nil
}

// Reset removes the student's submission so they can start over. Blob
// deletes are best effort and never block the record delete; the flag clear
// runs last so a crash leaves a retryable state, not a lost record.
func (s *Service) Reset(ctx context.Context, studentID string) error {
	loc, err := s.resolver.FindSubmission(ctx, studentID)
	if err != nil {
		return err
	}
	if loc == nil {
		return domain.ErrRecordNotFound
	}
	if loc.Legacy {
		return fmt.Errorf("legacy submissions cannot be reset")
	}

	rec, err := s.records.Get(ctx, loc.Term, studentID)
	if err != nil {
		return err
	}

	s.cleanupFiles(ctx, rec.Uploads)

	if err := s.records.Delete(ctx, loc.Term, studentID); err != nil {
		return fmt.Errorf("delete submission record: %w", err)
	}
	if err := s.users.ClearSubmission(ctx, studentID); err != nil {
		logger.Error(ctx, "failed to clear submission flags",
			"student_id", studentID,
			"error", err,
		)
		// The record is already gone; surface the failure so the caller
		// retries the flag clear.
		return fmt.Errorf("clear submission flags: %w", err)
	}

	s.publish(ctx, TopicSubmissionReset, studentID, map[string]any{
		"studentId":    studentID,
		"academicYear": loc.Term.AcademicYear,
		"term":         loc.Term.Number,
	})
	return nil
}

// Watch streams the student's submission record as it changes.
func (s *Service) Watch(ctx context.Context, studentID string) (<-chan domain.Record, error) {
	loc, err := s.resolver.FindSubmission(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if loc == nil || loc.Legacy {
		return nil, domain.ErrRecordNotFound
	}
	return s.records.Watch(ctx, loc.Term, studentID)
}

// OCRCheck is the outcome of the soft text verification of an upload.
type OCRCheck struct {
	Skipped bool   `json:"skipped"`
	Matched bool   `json:"matched"`
	Text    string `json:"text,omitempty"`
}

// VerifyDocument runs the uploaded image through the text extraction
// collaborator and checks for the expected keywords. Collaborator failures
// skip the check; a mismatch is a warning the applicant may override.
func (s *Service) VerifyDocument(ctx context.Context, fileName string, data []byte, keywords []string) *OCRCheck {
	if s.ocr == nil {
		return &OCRCheck{Skipped: true}
	}
	res, err := s.ocr.Extract(ctx, fileName, data)
	if err != nil || !res.Success {
		logger.Warn(ctx, "text extraction unavailable, skipping check",
			"file", fileName,
			"error", err,
		)
		return &OCRCheck{Skipped: true}
	}
	return &OCRCheck{Matched: containsAny(res.Text, keywords), Text: res.Text}
}

func (s *Service) publish(ctx context.Context, topic, key string, value any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, key, value); err != nil {
		logger.Warn(ctx, "event publish failed", "topic", topic, "key", key, "error", err)
	}
}

func findRequirement(reqs []surveydomain.Requirement, id string) *surveydomain.Requirement {
	for i := range reqs {
		if reqs[i].ID == id {
			return &reqs[i]
		}
	}
	return nil
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
