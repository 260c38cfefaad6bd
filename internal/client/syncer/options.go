package syncer

import (
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/gate"
	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/netx"
	"github.com/dmitrijs2005/gophsync/internal/shared"
)

// DefaultWatermarkSkew is subtracted from lastSync when building the pull
// filter, covering records committed with a timestamp slightly older than
// the moment the previous sweep started.
const DefaultWatermarkSkew = time.Second

// MergeStrategy decides how pulled records are combined with local ones.
type MergeStrategy int

const (
	// Assign replaces every top-level field the server returned.
	Assign MergeStrategy = iota
	// DeepMerge merges nested objects field by field.
	DeepMerge
)

func (m MergeStrategy) apply(dst, src models.Entity) {
	switch m {
	case DeepMerge:
		models.DeepMerge(dst, src)
	default:
		models.Assign(dst, src)
	}
}

// CollectionConfig binds a model to its backend.
type CollectionConfig struct {
	Model  shared.Model
	Remote remote.Remote
	Merge  MergeStrategy
	// PageSize overrides Model.PageSize when positive.
	PageSize int
}

// Options configure an Engine.
type Options struct {
	Adapter persist.Adapter
	// Codec defaults to persist.JSONCodec.
	Codec  persist.Codec
	Gate   *gate.Gate
	Logger logging.Logger

	Backoff netx.Backoff
	// WatermarkSkew defaults to DefaultWatermarkSkew. A negative value
	// disables it.
	WatermarkSkew time.Duration
	// FullRecordUpdates sends the whole record on update instead of the
	// changed fields only.
	FullRecordUpdates bool
	// DisableFeed turns off server change subscriptions.
	DisableFeed bool

	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = persist.JSONCodec{}
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Gate == nil {
		o.Gate = gate.New()
	}
	switch {
	case o.WatermarkSkew == 0:
		o.WatermarkSkew = DefaultWatermarkSkew
	case o.WatermarkSkew < 0:
		o.WatermarkSkew = 0
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// SyncOptions tune a single Sync call.
type SyncOptions struct {
	// ResetLastSync makes the sweep start from the beginning of time.
	ResetLastSync bool
}
