package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort reads the activity summary.
type ActivityPort interface {
	Summary(ctx context.Context, limit int) (*SummaryResponse, error)
}

type activityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates an adapter over the activity module's ServiceContainer.
func NewActivityAdapter(container mono.ServiceContainer) ActivityPort {
	if container == nil {
		panic("activity adapter requires non-nil ServiceContainer")
	}
	return &activityAdapter{container: container}
}

// Summary calls the activity-summary service.
func (a *activityAdapter) Summary(ctx context.Context, limit int) (*SummaryResponse, error) {
	var resp SummaryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSummary,
		json.Marshal,
		json.Unmarshal,
		&SummaryRequest{Limit: limit},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceSummary, err)
	}
	return &resp, nil
}
