package v1

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/engine"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// Engine is the part of *engine.Engine the handlers need.
type Engine interface {
	Start(ctx context.Context, ports []int, highPortMode bool) error
	Stop() error
	Status() engine.Status
	Ping(ctx context.Context) error
	Statistics(ctx context.Context) *types.Statistics
	RecentEvents(ctx context.Context, limit int) []types.AttackEvent
	EventsBySource(ctx context.Context, ip string, limit int) []types.AttackEvent
	Event(ctx context.Context, id int64) *types.AttackEvent
	Alerts(ctx context.Context, limit int) []types.Alert
	IPRecords(ctx context.Context, limit int) []types.IPRecord
	IPRecord(ctx context.Context, ip string) *types.IPRecord
	IPEnrichment(ctx context.Context, ip string) *types.IPEnrichment
	AcknowledgeAlert(ctx context.Context, id int64) (bool, error)
	DeleteEvent(ctx context.Context, id int64) (bool, error)
	ExportAll(ctx context.Context, format string) ([]byte, error)
	ClearAll(ctx context.Context) error
}

type Controller struct {
	Engine Engine
	// HighPortMode is used by start requests that do not set it.
	HighPortMode bool
	Log          *log.Entry
}

func New(eng Engine, highPortMode bool, logger *log.Entry) *Controller {
	if logger == nil {
		logger = log.StandardLogger().WithField("component", "api")
	}

	return &Controller{
		Engine:       eng,
		HighPortMode: highPortMode,
		Log:          logger,
	}
}
