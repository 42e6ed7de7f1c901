package backup

import (
	"github.com/hookdump/hookdump/internal/deliver"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/hookdump/hookdump/internal/notify"
)

type Options struct {
	// TargetID labels the run in logs and notifications. Optional.
	TargetID string

	Compress  bool
	Algorithm string

	// FileName overrides the generated artifact name.
	FileName string

	// WorkDir is where the artifact is staged before delivery. Defaults
	// to the system temp directory.
	WorkDir string

	// KeepLocal leaves the staged artifact on disk after delivery.
	KeepLocal bool

	// ArchiveURI, when set, stores a copy of the artifact before it is
	// delivered to the webhook.
	ArchiveURI    string
	AllowInsecure bool

	// MaxFileBytes mirrors the deliverer's split threshold so the part
	// count can be reported. Zero disables the estimate.
	MaxFileBytes int64

	Logger    *logger.Logger
	Notifier  notify.Notifier
	Deliverer deliver.Deliverer
}
