package stream

import (
	"context"
	"time"

	"kis-board/internal/models"
)

// Refresher produces a fresh valuation.
type Refresher interface {
	Refresh(ctx context.Context) (*models.Valuation, error)
}

// FrameRenderer renders a valuation into the frame pushed to clients.
type FrameRenderer interface {
	Frame(v *models.Valuation) (string, error)
}

// RefreshJob refreshes the board and publishes it to the hub. It does
// nothing while nobody is watching.
type RefreshJob struct {
	hub       *Hub
	refresher Refresher
	renderer  FrameRenderer
	timeout   time.Duration
}

// NewRefreshJob creates the periodic board refresh.
func NewRefreshJob(hub *Hub, refresher Refresher, renderer FrameRenderer, timeout time.Duration) *RefreshJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshJob{
		hub:       hub,
		refresher: refresher,
		renderer:  renderer,
		timeout:   timeout,
	}
}

// Name implements Job.
func (j *RefreshJob) Name() string {
	return "board-refresh"
}

// Run implements Job.
func (j *RefreshJob) Run() error {
	if j.hub.Watchers() == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	v, err := j.refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	frame, err := j.renderer.Frame(v)
	if err != nil {
		return err
	}

	j.hub.Publish(Update{At: time.Now(), Valuation: v, Frame: frame})
	return nil
}
