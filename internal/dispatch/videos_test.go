package dispatch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/providers/gateway"
)

func servePNG(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(server.Close)
	return server
}

// Video submission hits a transient GOAWAY twice and succeeds on the third
// attempt: the job reaches RUNNING with the vendor task id recorded, exactly
// two increasing backoff waits occur, and the poller runs once.
func TestSingleVideoRetriesTransientSubmit(t *testing.T) {
	assetServer := servePNG(t)

	e := &env{
		jobs: newJobsFake("job-1"),
		targets: &targetsFake{shots: map[string]*domain.Shot{
			"shot-1": {ID: "shot-1", ProjectID: "proj-1", Script: "A chase over rooftops.", AssetURL: assetServer.URL + "/shot-1.png"},
		}},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	submits := 0
	e.gateway.submitFn = func(req gateway.VideoRequest) (*gateway.VideoHandle, error) {
		submits++
		if submits < 3 {
			return nil, errors.New("http2: server sent GOAWAY and closed the connection")
		}
		if len(req.ReferenceData) == 0 {
			t.Fatalf("reference must be attached on every attempt")
		}
		return &gateway.VideoHandle{ID: "video_1", Status: "queued"}, nil
	}
	e.gateway.statusFn = func(taskID string) (*gateway.VideoStatus, error) {
		return &gateway.VideoStatus{ID: taskID, Status: gateway.VideoCompleted}, nil
	}
	e.gateway.downloadFn = func(taskID string) ([]byte, string, error) {
		return []byte("mp4-bytes"), "video/mp4", nil
	}
	d := newTestDispatcher(e)

	err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskSingleVideo,
		TargetIDs: []string{"shot-1"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if submits != 3 {
		t.Fatalf("submit attempts = %d, want 3", submits)
	}
	if len(e.waits) != 2 || !(e.waits[0] < e.waits[1]) {
		t.Fatalf("backoff waits = %v, want exactly 2 increasing", e.waits)
	}
	if e.gateway.statusCalls != 1 {
		t.Fatalf("status polls = %d, want 1 (terminal on first poll)", e.gateway.statusCalls)
	}

	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s, want SUCCEEDED (%s)", job.Status, job.ErrorMessage)
	}
	if job.Metadata[domain.MetaVendorTaskID] != "video_1" {
		t.Fatalf("vendor task id = %v", job.Metadata[domain.MetaVendorTaskID])
	}
	if len(e.billing.charges) != 1 || e.billing.charges[0].bizType != BizVideoGeneration {
		t.Fatalf("charges = %+v, want one video charge", e.billing.charges)
	}
	if len(e.assets.versions) != 1 || e.assets.versions[0].Type != domain.AssetVideo {
		t.Fatalf("asset versions = %+v", e.assets.versions)
	}
}

// A permanent submission error fails the job without retries.
func TestSingleVideoPermanentSubmitError(t *testing.T) {
	assetServer := servePNG(t)

	e := &env{
		jobs: newJobsFake("job-1"),
		targets: &targetsFake{shots: map[string]*domain.Shot{
			"shot-1": {ID: "shot-1", ProjectID: "proj-1", Script: "x", AssetURL: assetServer.URL + "/shot-1.png"},
		}},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	e.gateway.submitFn = func(req gateway.VideoRequest) (*gateway.VideoHandle, error) {
		return nil, errors.New("prompt violates content policy")
	}
	d := newTestDispatcher(e)

	if err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskSingleVideo,
		TargetIDs: []string{"shot-1"},
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if e.gateway.submitCalls != 1 {
		t.Fatalf("submit attempts = %d, want 1", e.gateway.submitCalls)
	}
	if len(e.waits) != 0 {
		t.Fatalf("no backoff expected, got %v", e.waits)
	}
	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "content policy") {
		t.Fatalf("job = %+v", job)
	}
}

// Batch of 2 under MISSING mode where shot 1 already owns a video: shot 1
// counts as success with no vendor call and its existing URL, shot 2 runs the
// full submit-and-await cycle.
func TestBatchVideoMissingModeSkipsSatisfiedShot(t *testing.T) {
	assetServer := servePNG(t)

	e := &env{
		jobs: newJobsFake("job-1"),
		targets: &targetsFake{shots: map[string]*domain.Shot{
			"shot-1": {ID: "shot-1", ProjectID: "proj-1", Script: "Beat one.", VideoURL: "https://files.example.com/existing.mp4"},
			"shot-2": {ID: "shot-2", ProjectID: "proj-1", Script: "Beat two.", AssetURL: assetServer.URL + "/shot-2.png"},
		}},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	e.gateway.submitFn = func(req gateway.VideoRequest) (*gateway.VideoHandle, error) {
		return &gateway.VideoHandle{ID: "video_2", Status: "queued"}, nil
	}
	e.gateway.statusFn = func(taskID string) (*gateway.VideoStatus, error) {
		return &gateway.VideoStatus{ID: taskID, Status: gateway.VideoCompleted}, nil
	}
	e.gateway.downloadFn = func(taskID string) ([]byte, string, error) {
		return []byte("mp4-bytes"), "video/mp4", nil
	}
	d := newTestDispatcher(e)

	if err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskBatchVideo,
		TargetIDs: []string{"shot-1", "shot-2"},
		Params:    domain.GenerationParams{Mode: domain.ModeMissing},
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if e.gateway.submitCalls != 1 {
		t.Fatalf("submit calls = %d, want 1 (satisfied shot skipped)", e.gateway.submitCalls)
	}
	if len(e.billing.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(e.billing.charges))
	}
	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s, want SUCCEEDED (%s)", job.Status, job.ErrorMessage)
	}
	if job.DoneItems != 2 || job.TotalItems != 2 {
		t.Fatalf("progress = %d/%d, want 2/2", job.DoneItems, job.TotalItems)
	}
	urls, _ := job.Metadata[domain.MetaResultURLs].([]string)
	if len(urls) != 2 || urls[0] != "https://files.example.com/existing.mp4" {
		t.Fatalf("result urls = %v, want the existing video first", urls)
	}
}

// Single video under MISSING mode with the video already present: no vendor
// call, no charge, the job succeeds with the existing URL.
func TestSingleVideoMissingModeUsesExistingVideo(t *testing.T) {
	e := &env{
		jobs: newJobsFake("job-1"),
		targets: &targetsFake{shots: map[string]*domain.Shot{
			"shot-1": {ID: "shot-1", ProjectID: "proj-1", Script: "Beat one.", VideoURL: "https://files.example.com/existing.mp4"},
		}},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	d := newTestDispatcher(e)

	if err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskSingleVideo,
		TargetIDs: []string{"shot-1"},
		Params:    domain.GenerationParams{Mode: domain.ModeMissing},
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if e.gateway.submitCalls != 0 || e.gateway.statusCalls != 0 {
		t.Fatalf("vendor calls = %d submits, %d polls, want none", e.gateway.submitCalls, e.gateway.statusCalls)
	}
	if len(e.billing.charges) != 0 {
		t.Fatalf("satisfied shot must not be charged")
	}
	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusSucceeded || job.ResultURL != "https://files.example.com/existing.mp4" {
		t.Fatalf("job = %+v", job)
	}
	if job.DoneItems != 1 || job.TotalItems != 1 {
		t.Fatalf("progress = %d/%d, want 1/1", job.DoneItems, job.TotalItems)
	}
}

// A batch video payload with no targets is malformed: it fails instead of
// completing vacuously.
func TestBatchVideoWithoutTargetsFails(t *testing.T) {
	e := &env{
		jobs:    newJobsFake("job-1"),
		targets: &targetsFake{},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	d := newTestDispatcher(e)

	if err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskBatchVideo,
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if e.gateway.submitCalls != 0 {
		t.Fatalf("no vendor call expected")
	}
	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "invalid task") {
		t.Fatalf("job = %+v", job)
	}
}

// A vendor-side terminal failure during polling fails the job with the
// vendor's message; nothing is charged.
func TestSingleVideoVendorFailureWhilePolling(t *testing.T) {
	assetServer := servePNG(t)

	e := &env{
		jobs: newJobsFake("job-1"),
		targets: &targetsFake{shots: map[string]*domain.Shot{
			"shot-1": {ID: "shot-1", ProjectID: "proj-1", Script: "x", AssetURL: assetServer.URL + "/shot-1.png"},
		}},
		assets:  &assetsFake{},
		billing: &billingFake{},
		storage: &storageFake{},
		gateway: &gatewayFake{},
	}
	e.gateway.submitFn = func(req gateway.VideoRequest) (*gateway.VideoHandle, error) {
		return &gateway.VideoHandle{ID: "video_1", Status: "queued"}, nil
	}
	polls := 0
	e.gateway.statusFn = func(taskID string) (*gateway.VideoStatus, error) {
		polls++
		if polls == 1 {
			// Minimal early payload: not terminal, not an error.
			return &gateway.VideoStatus{ID: taskID, Status: "in_progress"}, nil
		}
		return &gateway.VideoStatus{
			ID:     taskID,
			Status: gateway.VideoFailed,
			Error:  &gateway.VideoStatusError{Message: "generation rejected by safety system"},
		}, nil
	}
	d := newTestDispatcher(e)

	if err := d.Handle(context.Background(), &domain.TaskMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Kind:      domain.TaskSingleVideo,
		TargetIDs: []string{"shot-1"},
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
	job := e.jobs.get("job-1")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "safety system") {
		t.Fatalf("job = %+v", job)
	}
	if len(e.billing.charges) != 0 {
		t.Fatalf("failed video must not be charged")
	}
}
