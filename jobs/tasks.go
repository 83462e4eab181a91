package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-social/meridian-users/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPicturePurge removes a replaced profile picture from storage.
	TaskPicturePurge = "user:picture:purge"
	// TaskPictureSweep reconciles the media directory against the users table.
	TaskPictureSweep = "user:picture:sweep"
)

// PicturePurgePayload names the file to remove.
type PicturePurgePayload struct {
	FileName string `json:"file_name"`
}

// NewPicturePurgeTask constructs an Asynq task for a single file removal.
func NewPicturePurgeTask(fileName string) (*asynq.Task, error) {
	data, err := json.Marshal(PicturePurgePayload{FileName: fileName})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPicturePurge, data), nil
}

// NewPictureSweepTask constructs the periodic orphan sweep task.
func NewPictureSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPictureSweep, nil)
}

// FileStore is the slice of the media store the jobs need.
type FileStore interface {
	Delete(name string) error
	List() ([]string, error)
}

// PictureRefLister reports which picture files are still referenced.
type PictureRefLister interface {
	ListPictureRefs(ctx context.Context) ([]string, error)
}

// PicturePurgeJob deletes replaced profile pictures. Deletion is best-effort
// from the caller's point of view; a failed run is retried by Asynq.
type PicturePurgeJob struct {
	store   FileStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPicturePurgeJob constructs the purge handler.
func NewPicturePurgeJob(store FileStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *PicturePurgeJob {
	return &PicturePurgeJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskPicturePurge tasks.
func (j *PicturePurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("picture_purge")
	var payload PicturePurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.FileName == "" {
		return tracker.End(nil)
	}
	if err := j.store.Delete(payload.FileName); err != nil {
		j.logger.Warn("picture purge failed", slog.String("file", payload.FileName), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("picture purged", slog.String("file", payload.FileName))
	return tracker.End(nil)
}

// PictureSweepJob removes media files no user row references anymore.
type PictureSweepJob struct {
	store   FileStore
	refs    PictureRefLister
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPictureSweepJob constructs the sweep handler.
func NewPictureSweepJob(store FileStore, refs PictureRefLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *PictureSweepJob {
	return &PictureSweepJob{store: store, refs: refs, logger: logger, metrics: metrics}
}

// Handle processes TaskPictureSweep tasks.
func (j *PictureSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("picture_sweep")
	referenced, err := j.refs.ListPictureRefs(ctx)
	if err != nil {
		return tracker.End(err)
	}
	stored, err := j.store.List()
	if err != nil {
		return tracker.End(err)
	}
	var removed int
	for _, name := range stored {
		if slices.Contains(referenced, name) {
			continue
		}
		if err := j.store.Delete(name); err != nil {
			j.logger.Warn("orphan removal failed", slog.String("file", name), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("orphaned pictures removed", slog.Int("count", removed))
	}
	return tracker.End(nil)
}
