package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service/analyzer"
	"github.com/rs/zerolog"
)

const (
	factorialCode = `def factorial(n):
    if n <= 1:
        return 1
    return n * factorial(n - 1)
`
	greetingCode = `print("hello world")`
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sub(id, student, code string, minutes int) models.Submission {
	return models.Submission{
		ID:           id,
		StudentID:    student,
		AssignmentID: "hw1",
		CodeContent:  code,
		SubmittedAt:  baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

type fakeSubmissionRepo struct {
	submissions []models.Submission
	err         error
}

func (f *fakeSubmissionRepo) GetAllByAssignment(_ context.Context, assignmentID string) ([]models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	var result []models.Submission
	for _, s := range f.submissions {
		if s.AssignmentID == assignmentID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.submissions {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

// fakeReportRepo stages writes made inside RunInTx and applies them only when
// the callback succeeds.
type fakeReportRepo struct {
	mu           sync.Mutex
	reports      map[string]models.Report
	similarities map[string][]models.Similarity

	createSimilaritiesErr error
	batches               int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{
		reports:      make(map[string]models.Report),
		similarities: make(map[string][]models.Similarity),
	}
}

func (f *fakeReportRepo) Create(_ context.Context, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReportRepo) Update(_ context.Context, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[report.ID]; !ok {
		return errors.New("report not found")
	}
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

func (f *fakeReportRepo) GetByAssignment(_ context.Context, assignmentID string) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []models.Report{}
	for _, r := range f.reports {
		if r.AssignmentID == assignmentID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (f *fakeReportRepo) CreateSimilarity(ctx context.Context, similarity *models.Similarity) error {
	return f.CreateSimilarities(ctx, []models.Similarity{*similarity})
}

func (f *fakeReportRepo) CreateSimilarities(_ context.Context, similarities []models.Similarity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createSimilaritiesErr != nil {
		return f.createSimilaritiesErr
	}
	f.batches++
	for _, s := range similarities {
		f.similarities[s.ReportID] = append(f.similarities[s.ReportID], s)
	}
	return nil
}

func (f *fakeReportRepo) GetSimilaritiesByReport(_ context.Context, reportID string, minScore *float64) ([]models.Similarity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []models.Similarity{}
	for _, s := range f.similarities[reportID] {
		if minScore != nil && s.SimilarityScore < *minScore {
			continue
		}
		result = append(result, s)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SimilarityScore > result[j].SimilarityScore
	})
	return result, nil
}

func (f *fakeReportRepo) RunInTx(ctx context.Context, fn func(tx repository.ReportRepository) error) error {
	f.mu.Lock()
	staged := newFakeReportRepo()
	staged.createSimilaritiesErr = f.createSimilaritiesErr
	f.mu.Unlock()

	if err := fn(staged); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range staged.reports {
		f.reports[id] = r
	}
	for id, sims := range staged.similarities {
		f.similarities[id] = append(f.similarities[id], sims...)
	}
	f.batches += staged.batches
	return nil
}

func (f *fakeReportRepo) Ping(context.Context) error { return nil }

func (f *fakeReportRepo) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func (f *fakeReportRepo) similarityCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sims := range f.similarities {
		n += len(sims)
	}
	return n
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) all() []models.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditLog(nil), f.entries...)
}

type fakeStatusRepo struct {
	mu        sync.Mutex
	snapshots map[string]models.TaskSnapshot
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{snapshots: make(map[string]models.TaskSnapshot)}
}

func (f *fakeStatusRepo) Save(_ context.Context, snapshot *models.TaskSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapshot.TaskID] = *snapshot
	return nil
}

func (f *fakeStatusRepo) Get(_ context.Context, taskID string) (*models.TaskSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot, ok := f.snapshots[taskID]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	completed []models.ReportCompletedEvent
	failed    []models.ReportFailedEvent
}

func (f *fakePublisher) PublishReportCompleted(_ context.Context, event models.ReportCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, event)
	return nil
}

func (f *fakePublisher) PublishReportFailed(_ context.Context, event models.ReportFailedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, event)
	return nil
}

// goRunner runs every task on a fresh goroutine.
type goRunner struct{}

func (goRunner) Submit(task func()) error {
	go task()
	return nil
}

// queuedRunner holds tasks until runAll.
type queuedRunner struct {
	mu    sync.Mutex
	tasks []func()
}

func (r *queuedRunner) Submit(task func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *queuedRunner) runAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	for _, task := range tasks {
		go task()
	}
}

type rejectingRunner struct{}

func (rejectingRunner) Submit(func()) error {
	return errors.New("pool is full")
}

type fixture struct {
	submissions *fakeSubmissionRepo
	reports     *fakeReportRepo
	audit       *fakeAuditRepo
	coordinator ReportCoordinator
}

func newFixture(submissions []models.Submission, settings Settings, batchSize int) *fixture {
	f := &fixture{
		submissions: &fakeSubmissionRepo{submissions: submissions},
		reports:     newFakeReportRepo(),
		audit:       &fakeAuditRepo{},
	}

	engine := analyzer.NewPlagiarismEngine(
		analyzer.NewSimilarityScorer(analyzer.DefaultScorerConfig()),
		analyzer.NewCandidateSelector(analyzer.DefaultSelectorConfig(), zerolog.Nop()),
		zerolog.Nop(),
		analyzer.EngineConfig{Workers: 2},
	)

	f.coordinator = NewReportCoordinator(
		f.submissions,
		f.reports,
		engine,
		StaticSettings(settings),
		NewAuditLogger(f.audit, zerolog.Nop()),
		zerolog.Nop(),
		CoordinatorConfig{BatchSize: batchSize},
	)
	return f
}

// classroom: alice resubmitted, bob and carol share the same code.
func classroom() []models.Submission {
	return []models.Submission{
		sub("a1", "alice", factorialCode, 0),
		sub("a2", "alice", greetingCode, 10),
		sub("b1", "bob", factorialCode, 5),
		sub("c1", "carol", factorialCode, 7),
	}
}
