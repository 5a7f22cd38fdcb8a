package build

import (
	"context"
	"fmt"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
)

// PublishStage hands every produced file to the host
type PublishStage struct{}

// Name implements Stage
func (s *PublishStage) Name() db.BuildStatus {
	return db.BuildStatusPublishing
}

// Validate implements Stage
func (s *PublishStage) Validate(ctx context.Context, sc *StageContext) error {
	if len(sc.Outputs) == 0 {
		return errors.ErrStageFailed.WithMessage("nothing to publish")
	}
	return nil
}

// Execute implements Stage. When an output cannot be attached, the outputs
// attached before it are withdrawn so that a failed build publishes nothing.
func (s *PublishStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	for i, out := range sc.Outputs {
		err := ctx.Err()
		if err == nil {
			progress(i*100/len(sc.Outputs), fmt.Sprintf("Attaching %s", out.Path))
			err = sc.Host.AttachOutput(ctx, out.Kind, out.Classifier, out.Path)
		}
		if err != nil {
			if i > 0 {
				rollback(ctx, sc)
			}
			return err
		}
	}
	progress(100, fmt.Sprintf("Attached %d outputs", len(sc.Outputs)))
	return nil
}

func rollback(ctx context.Context, sc *StageContext) {
	r, ok := sc.Host.(Rollbacker)
	if !ok {
		log.Warn("Host cannot withdraw published outputs", "build_id", sc.BuildID)
		return
	}
	if err := r.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Error("Failed to withdraw published outputs", "build_id", sc.BuildID, "error", err)
		return
	}
	log.Info("Published outputs withdrawn", "build_id", sc.BuildID)
}
