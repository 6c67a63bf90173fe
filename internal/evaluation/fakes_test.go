package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
	"github.com/arena-labs/arena-go/internal/repo"
	"github.com/arena-labs/arena-go/internal/storage/objectstore"
)

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSubmissions struct {
	records     map[string]domain.Submission
	transitions []domain.SubmissionStatus
}

func newFakeSubmissions(subs ...domain.Submission) *fakeSubmissions {
	f := &fakeSubmissions{records: map[string]domain.Submission{}}
	for _, s := range subs {
		f.records[s.ID] = s
	}
	return f
}

func (f *fakeSubmissions) Get(_ context.Context, id string) (domain.Submission, error) {
	sub, ok := f.records[id]
	if !ok {
		return domain.Submission{}, repo.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubmissions) Create(_ context.Context, sub domain.Submission) error {
	if _, ok := f.records[sub.ID]; ok {
		return fmt.Errorf("duplicate submission %s", sub.ID)
	}
	f.records[sub.ID] = sub
	return nil
}

func (f *fakeSubmissions) Transition(_ context.Context, id string, next domain.SubmissionStatus) (repo.TransitionResult, error) {
	sub, ok := f.records[id]
	if !ok {
		return repo.TransitionResult{}, repo.ErrNotFound
	}
	res := repo.TransitionResult{From: sub.Status, To: next}
	if !domain.CanTransition(sub.Status, next) {
		return res, nil
	}
	sub.Status = next
	f.records[id] = sub
	res.Applied = true
	f.transitions = append(f.transitions, next)
	return res, nil
}

func (f *fakeSubmissions) UpdateDispatchState(_ context.Context, sub domain.Submission) error {
	stored, ok := f.records[sub.ID]
	if !ok {
		return repo.ErrNotFound
	}
	stored.Progress = sub.Progress
	stored.Files = sub.Files
	stored.ExceptionDetails = sub.ExceptionDetails
	f.records[sub.ID] = stored
	return nil
}

func (f *fakeSubmissions) SaveTraceback(_ context.Context, id, traceback string) error {
	sub, ok := f.records[id]
	if !ok {
		return repo.ErrNotFound
	}
	sub.ExceptionDetails = traceback
	f.records[id] = sub
	return nil
}

func (f *fakeSubmissions) ListByPhase(_ context.Context, phaseID string) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, sub := range f.records {
		if sub.PhaseID == phaseID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) NextSubmissionNumber(_ context.Context, phaseID, participantID string) (int, error) {
	max := 0
	for _, sub := range f.records {
		if sub.PhaseID == phaseID && sub.ParticipantID == participantID && sub.SubmissionNumber > max {
			max = sub.SubmissionNumber
		}
	}
	return max + 1, nil
}

func (f *fakeSubmissions) CountByParticipant(_ context.Context, phaseID, participantID string) (int, error) {
	count := 0
	for _, sub := range f.records {
		if sub.PhaseID == phaseID && sub.ParticipantID == participantID {
			count++
		}
	}
	return count, nil
}

type fakeCompetitions struct {
	phases       map[string]domain.Phase
	competitions map[string]domain.Competition
}

func (f *fakeCompetitions) GetPhase(_ context.Context, id string) (domain.Phase, error) {
	phase, ok := f.phases[id]
	if !ok {
		return domain.Phase{}, repo.ErrNotFound
	}
	return phase, nil
}

func (f *fakeCompetitions) GetCompetition(_ context.Context, id string) (domain.Competition, error) {
	comp, ok := f.competitions[id]
	if !ok {
		return domain.Competition{}, repo.ErrNotFound
	}
	return comp, nil
}

func (f *fakeCompetitions) ListPhases(_ context.Context, competitionID string) ([]domain.Phase, error) {
	var out []domain.Phase
	for _, p := range f.phases {
		if p.CompetitionID == competitionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeScores struct {
	defs   map[string]domain.ScoreDef // key -> def
	values map[string]map[string]float64
	// phaseValues holds pre-existing values of other submissions.
	phaseValues map[string][]float64
}

func newFakeScores() *fakeScores {
	return &fakeScores{
		defs:        map[string]domain.ScoreDef{},
		values:      map[string]map[string]float64{},
		phaseValues: map[string][]float64{},
	}
}

func (f *fakeScores) GetDefByKey(_ context.Context, competitionID, key string) (domain.ScoreDef, error) {
	def, ok := f.defs[key]
	if !ok || def.CompetitionID != competitionID {
		return domain.ScoreDef{}, repo.ErrNotFound
	}
	return def, nil
}

func (f *fakeScores) DefaultDef(_ context.Context, competitionID string) (domain.ScoreDef, error) {
	for _, def := range f.defs {
		if def.CompetitionID == competitionID && def.IsDefault {
			return def, nil
		}
	}
	return domain.ScoreDef{}, repo.ErrNotFound
}

func (f *fakeScores) Upsert(_ context.Context, score domain.Score) error {
	if f.values[score.SubmissionID] == nil {
		f.values[score.SubmissionID] = map[string]float64{}
	}
	f.values[score.SubmissionID][score.ScoreDefID] = score.Value
	return nil
}

func (f *fakeScores) ValueFor(_ context.Context, submissionID, scoreDefID string) (float64, error) {
	value, ok := f.values[submissionID][scoreDefID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return value, nil
}

func (f *fakeScores) PhaseValues(_ context.Context, _, scoreDefID string) ([]float64, error) {
	out := append([]float64(nil), f.phaseValues[scoreDefID]...)
	for _, perDef := range f.values {
		if v, ok := perDef[scoreDefID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeLeaderboard struct {
	promoted map[string]bool
	calls    int
	csv      []byte
}

func (f *fakeLeaderboard) Promote(_ context.Context, submissionID string) error {
	if f.promoted == nil {
		f.promoted = map[string]bool{}
	}
	f.promoted[submissionID] = true
	f.calls++
	return nil
}

func (f *fakeLeaderboard) ResultsCSV(_ context.Context, _ string, _ bool) ([]byte, error) {
	return f.csv, nil
}

type fakeJobs struct {
	jobs map[string]domain.Job
	n    int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]domain.Job{}}
}

func (f *fakeJobs) Create(_ context.Context, taskType string, args any) (domain.Job, error) {
	f.n++
	id := fmt.Sprintf("job-%d", f.n)
	raw, err := jsonMarshal(args)
	if err != nil {
		return domain.Job{}, err
	}
	job := domain.Job{ID: id, TaskType: taskType, TaskArgs: raw}
	f.jobs[id] = job
	return job, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, repo.ErrNotFound
	}
	return job, nil
}

func jsonMarshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

type fakeStats struct {
	submissions map[string][]domain.SubmissionStats
	downloads   []domain.DownloadRecord
}

func (f *fakeStats) PhaseSubmissionStats(_ context.Context, phaseID string) ([]domain.SubmissionStats, error) {
	return f.submissions[phaseID], nil
}

func (f *fakeStats) CompetitionDownloads(_ context.Context, _ string) ([]domain.DownloadRecord, error) {
	return f.downloads, nil
}

type fakeMetadata struct {
	merged map[string]map[string]any // submissionID/stage -> fields
}

func (f *fakeMetadata) UpsertMerge(_ context.Context, submissionID string, stage domain.MetadataStage, fields map[string]any) error {
	if f.merged == nil {
		f.merged = map[string]map[string]any{}
	}
	key := submissionID + "/" + string(stage)
	if f.merged[key] == nil {
		f.merged[key] = map[string]any{}
	}
	for k, v := range fields {
		f.merged[key][k] = v
	}
	return nil
}

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Save(_ context.Context, key, _ string, body []byte) error {
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) Sign(_ context.Context, key string, perm objectstore.Permission, _ time.Duration) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("https://store.test/%s?perm=%s", key, perm)
}

type published struct {
	Name      string
	Namespace string
	Payload   any
}

type fakePublisher struct {
	messages []published
	failFor  string
}

func (f *fakePublisher) Publish(_ context.Context, name, namespace string, payload any) error {
	if f.failFor != "" && name == f.failFor {
		return fmt.Errorf("queue %s unreachable", name)
	}
	f.messages = append(f.messages, published{Name: name, Namespace: namespace, Payload: payload})
	return nil
}

func (f *fakePublisher) byQueue(name string) []published {
	var out []published
	for _, m := range f.messages {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

type stubRoutes struct{}

func (stubRoutes) Resolve(queueName string) string {
	if queueName == "" {
		return "default"
	}
	return queueName
}

type recordingSink struct {
	callbacks []Callback
}

func (s *recordingSink) SubmitCallback(_ context.Context, cb Callback) error {
	s.callbacks = append(s.callbacks, cb)
	return nil
}

type testEnv struct {
	svc          *Service
	submissions  *fakeSubmissions
	competitions *fakeCompetitions
	scores       *fakeScores
	leaderboard  *fakeLeaderboard
	jobs         *fakeJobs
	store        *fakeStore
	pub          *fakePublisher
	sink         *recordingSink
	metadata     *fakeMetadata
}

func newTestEnv(t *testing.T, subs ...domain.Submission) *testEnv {
	t.Helper()
	env := &testEnv{
		submissions: newFakeSubmissions(subs...),
		competitions: &fakeCompetitions{
			phases:       map[string]domain.Phase{},
			competitions: map[string]domain.Competition{},
		},
		scores:      newFakeScores(),
		leaderboard: &fakeLeaderboard{csv: []byte("submission,accuracy\n")},
		jobs:        newFakeJobs(),
		store:       newFakeStore(),
		pub:         &fakePublisher{},
		sink:        &recordingSink{},
		metadata:    &fakeMetadata{},
	}
	logger := newTestLogger(t)
	dispatcher := NewDispatcher(env.store, env.pub, stubRoutes{}, DispatcherConfig{
		DefaultDockerImage: "arena/compute-worker:latest",
		SignTTL:            time.Hour,
	}, logger)
	env.svc = NewService(ServiceParams{
		Submissions:  env.submissions,
		Competitions: env.competitions,
		Scores:       env.scores,
		Leaderboard:  env.leaderboard,
		Jobs:         env.jobs,
		Stats:        &fakeStats{},
		Metadata:     env.metadata,
		Store:        env.store,
		Dispatcher:   dispatcher,
		Publisher:    env.pub,
		Callbacks:    env.sink,
		Notifier:     LogNotifier{Logger: logger},
		SignTTL:      time.Hour,
		Logger:       logger,
	})
	if env.svc == nil {
		t.Fatalf("expected service")
	}
	return env
}
