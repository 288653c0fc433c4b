package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bleep/internal/config"
	"bleep/internal/logging"
	"bleep/internal/registry"
	"bleep/internal/services"
	"bleep/internal/testsupport"
)

const fakeTranscriptJSON = `{"results": {"language_code": "en-IN", "items": [
  {"start_time": "0.0", "end_time": "0.5", "speaker_label": "spk_0", "alternatives": [{"content": "call"}]},
  {"start_time": "0.5", "end_time": "0.9", "speaker_label": "spk_0", "alternatives": [{"content": "me"}]},
  {"start_time": "0.9", "end_time": "1.4", "speaker_label": "spk_0", "alternatives": [{"content": "9876543210"}]}
]}}`

type memStore struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]map[string][]byte)}
}

func (m *memStore) put(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string][]byte)
	}
	m.objects[bucket][key] = body
}

func (m *memStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *memStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket][key]
	return ok, nil
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[bucket][key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "store", "get", fmt.Sprintf("%s/%s", bucket, key), nil)
	}
	return body, nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, body []byte) error {
	m.put(bucket, key, body)
	return nil
}

type fakeJob struct {
	sourceKey string
	polls     int
}

// fakeTranscriber completes each job after a fixed number of polls and
// tracks how many jobs were ever in flight at once.
type fakeTranscriber struct {
	mu              sync.Mutex
	store           *memStore
	transcriptsTo   string
	pollsToComplete int
	jobSeq          int
	jobs            map[string]*fakeJob
	inFlight        int
	maxInFlight     int
	submits         int
	submitErr       error
	failKeys        map[string]string
	neverComplete   bool
}

func newFakeTranscriber(store *memStore) *fakeTranscriber {
	return &fakeTranscriber{
		store:           store,
		transcriptsTo:   "tx",
		pollsToComplete: 1,
		jobs:            make(map[string]*fakeJob),
		failKeys:        make(map[string]string),
	}
}

func (f *fakeTranscriber) Submit(_ context.Context, req SubmitRequest) (SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return SubmitResult{}, f.submitErr
	}
	f.jobSeq++
	jobName := fmt.Sprintf("job-%08d", f.jobSeq)
	f.jobs[jobName] = &fakeJob{sourceKey: req.Key}
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	transcriptKey := jobName + ".json"
	f.store.put(f.transcriptsTo, transcriptKey, []byte(fakeTranscriptJSON))
	return SubmitResult{JobName: jobName, TranscriptKey: transcriptKey}, nil
}

func (f *fakeTranscriber) Poll(_ context.Context, jobName string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobName]
	if !ok {
		return JobStatus{}, services.Wrap(services.ErrNotFound, "transcription", "poll", jobName, nil)
	}
	job.polls++
	if reason, failed := f.failKeys[job.sourceKey]; failed {
		f.inFlight--
		delete(f.jobs, jobName)
		return JobStatus{State: JobStateFailed, FailureReason: reason}, nil
	}
	if f.neverComplete || job.polls < f.pollsToComplete {
		return JobStatus{State: JobStateRunning}, nil
	}
	f.inFlight--
	delete(f.jobs, jobName)
	return JobStatus{State: JobStateCompleted}, nil
}

type fakeRedactor struct {
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	output   string
}

func (f *fakeRedactor) Redact(_ context.Context, text, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", f.failWith
	}
	if f.output != "" {
		return f.output, nil
	}
	return text, nil
}

func testConfig(t *testing.T) *config.Config {
	return testsupport.NewConfig(t,
		testsupport.WithBuckets("in", "tx", "out"),
		testsupport.WithMaxConcurrentJobs(3),
		testsupport.WithWorkers(2),
		testsupport.WithMaxAttempts(3),
	)
}

func newTestDriver(cfg *config.Config, store ObjectStore, trans Transcriber, red Redactor) *Driver {
	d := New(cfg, store, trans, red, logging.NewNop())
	d.tickInterval = 2 * time.Millisecond
	d.pollInterval = 4 * time.Millisecond
	d.jobTimeout = 5 * time.Second
	d.retryBackoff = time.Millisecond
	return d
}

func seedInputs(store *memStore, count int) []string {
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("calls/audio-%02d.mp3", i)
		store.put("in", key, []byte("audio"))
		keys = append(keys, key)
	}
	return keys
}

func TestRunCompletesAllItemsUnderSlotCeiling(t *testing.T) {
	store := newMemStore()
	keys := seedInputs(store, 7)
	store.put("in", "notes/readme.txt", []byte("not audio"))
	trans := newFakeTranscriber(store)
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Discovered != 7 || summary.Completed != 7 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.Clean() {
		t.Fatal("expected clean summary")
	}
	if trans.maxInFlight > 3 {
		t.Fatalf("slot ceiling exceeded: %d jobs in flight", trans.maxInFlight)
	}
	for _, key := range keys {
		exists, _ := store.Exists(context.Background(), "out", OutputKeyFor(key))
		if !exists {
			t.Fatalf("expected redacted output for %s", key)
		}
	}
}

func TestProviderJobFailureReleasesSlot(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 5)
	trans := newFakeTranscriber(store)
	trans.failKeys["calls/audio-02.mp3"] = "unsupported codec"
	red := &fakeRedactor{}

	cfg := testConfig(t)
	cfg.Transcription.MaxConcurrentJobs = 2
	driver := newTestDriver(cfg, store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Completed != 4 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].SourceKey != "calls/audio-02.mp3" {
		t.Fatalf("unexpected failures: %v", summary.Failures)
	}
	if !strings.Contains(summary.Failures[0].Reason, "unsupported codec") {
		t.Fatalf("expected provider reason, got %q", summary.Failures[0].Reason)
	}
}

func TestSubmitRetriesExhaustAttemptBudget(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 1)
	trans := newFakeTranscriber(store)
	trans.submitErr = services.Wrap(services.ErrThrottled, "transcription", "submit", "rate exceeded", nil)
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(summary.Failures[0].Reason, "max attempts exceeded") {
		t.Fatalf("expected attempt budget in reason, got %q", summary.Failures[0].Reason)
	}
	if trans.submits != 3 {
		t.Fatalf("expected 3 submit attempts, got %d", trans.submits)
	}
	if driver.slots.InUse() != 0 {
		t.Fatalf("expected all slots released, got %d in use", driver.slots.InUse())
	}
}

func TestRedactionRetriesThenSucceeds(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 1)
	trans := newFakeTranscriber(store)
	red := &fakeRedactor{
		failures: 2,
		failWith: services.Wrap(services.ErrThrottled, "redaction", "detect", "rate exceeded", nil),
		output:   "call me [REDACTED: PHONE]",
	}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if red.calls != 3 {
		t.Fatalf("expected 3 redaction attempts, got %d", red.calls)
	}
	items := driver.reg.List(registry.StatusCompleted)
	if len(items) != 1 || items[0].Attempts != 3 {
		t.Fatalf("expected attempts recorded on item, got %v", items)
	}

	body, err := store.Get(context.Background(), "out", items[0].OutputKey)
	if err != nil {
		t.Fatalf("expected output object: %v", err)
	}
	if !strings.Contains(string(body), "[REDACTED:") {
		t.Fatalf("expected redaction marker in output, got %s", body)
	}
}

func TestRedactionValidationErrorIsTerminal(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 1)
	trans := newFakeTranscriber(store)
	red := &fakeRedactor{
		failures: 100,
		failWith: services.Wrap(services.ErrValidation, "redaction", "detect", "unsupported language", nil),
	}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if red.calls != 1 {
		t.Fatalf("validation errors must not retry, got %d calls", red.calls)
	}
}

func TestRerunSkipsExistingOutputs(t *testing.T) {
	store := newMemStore()
	keys := seedInputs(store, 3)
	for _, key := range keys[:2] {
		store.put("out", OutputKeyFor(key), []byte("[]"))
	}
	trans := newFakeTranscriber(store)
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Discovered != 1 || summary.Skipped != 2 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if trans.submits != 1 {
		t.Fatalf("expected 1 submission, got %d", trans.submits)
	}
}

func TestRunWithNothingToDo(t *testing.T) {
	store := newMemStore()
	trans := newFakeTranscriber(store)
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Discovered != 0 || !summary.Clean() {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if trans.submits != 0 {
		t.Fatalf("expected no submissions, got %d", trans.submits)
	}
}

func TestJobTimeoutFailsItem(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 1)
	trans := newFakeTranscriber(store)
	trans.neverComplete = true
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	driver.jobTimeout = 10 * time.Millisecond
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(summary.Failures[0].Reason, "timed out") {
		t.Fatalf("expected timeout reason, got %q", summary.Failures[0].Reason)
	}
	if !strings.HasPrefix(summary.Failures[0].Reason, services.ErrTimeout.Error()) {
		t.Fatalf("expected timeout classification, got %q", summary.Failures[0].Reason)
	}
	if driver.slots.InUse() != 0 {
		t.Fatalf("expected slot released after timeout, got %d in use", driver.slots.InUse())
	}
}

func TestCancellationFailsRemainingAndReports(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 4)
	trans := newFakeTranscriber(store)
	trans.neverComplete = true
	red := &fakeRedactor{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !summary.Stopped {
		t.Fatal("expected stopped summary")
	}
	if summary.Failed != 4 {
		t.Fatalf("expected all items failed on stop, got %+v", summary)
	}
	for _, failure := range summary.Failures {
		if failure.Reason != registry.StopReason {
			t.Fatalf("expected stop reason, got %q", failure.Reason)
		}
	}
}

func TestFatalConfigurationErrorAbortsRun(t *testing.T) {
	store := newMemStore()
	seedInputs(store, 3)
	trans := newFakeTranscriber(store)
	trans.submitErr = services.Wrap(services.ErrConfiguration, "transcription", "submit", "credentials expired", nil)
	red := &fakeRedactor{}

	driver := newTestDriver(testConfig(t), store, trans, red)
	summary, err := driver.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error from Run")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if summary == nil || !summary.Stopped {
		t.Fatalf("expected stopped summary, got %+v", summary)
	}
}

func TestPlanSeparatesProcessAndSkipped(t *testing.T) {
	store := newMemStore()
	keys := seedInputs(store, 2)
	store.put("out", OutputKeyFor(keys[0]), []byte("[]"))
	driver := newTestDriver(testConfig(t), store, newFakeTranscriber(store), &fakeRedactor{})

	process, skipped, err := driver.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(process) != 1 || process[0] != keys[1] {
		t.Fatalf("unexpected process list: %v", process)
	}
	if len(skipped) != 1 || skipped[0] != keys[0] {
		t.Fatalf("unexpected skipped list: %v", skipped)
	}
}

func TestOutputKeyFor(t *testing.T) {
	if got := OutputKeyFor("calls/a.mp3"); got != "redacted/calls/a.mp3.json" {
		t.Fatalf("unexpected output key: %q", got)
	}
}
