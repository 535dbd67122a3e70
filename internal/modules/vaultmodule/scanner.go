package vaultmodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/mediawall/internal/events"
)

// ScanStatus reports the state of the current or last rescan
type ScanStatus struct {
	Running    bool       `json:"running"`
	Indexed    int        `json:"indexed"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Scanner walks the vault roots and feeds every file through the catalog
// indexer. One scan runs at a time; a second request while running is
// rejected rather than queued.
type Scanner struct {
	logger   hclog.Logger
	eventBus events.EventBus
	indexer  Indexer

	mu     sync.Mutex
	status ScanStatus
}

// NewScanner creates a vault scanner
func NewScanner(indexer Indexer, eventBus events.EventBus, logger hclog.Logger) *Scanner {
	return &Scanner{
		logger:   logger.Named("vault-scanner"),
		eventBus: eventBus,
		indexer:  indexer,
	}
}

// Status returns a copy of the current scan state
func (s *Scanner) Status() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Rescan walks all roots synchronously. Returns an error if a scan is
// already running.
func (s *Scanner) Rescan(ctx context.Context, roots []string) error {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	now := time.Now()
	s.status = ScanStatus{Running: true, StartedAt: &now}
	s.mu.Unlock()

	s.publish(events.EventVaultScanStarted, "Vault scan started", fmt.Sprintf("%d roots", len(roots)))

	indexed, skipped, errs := 0, 0, 0
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				errs++
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			ok, err := s.indexer.IndexFile(ctx, path)
			switch {
			case err != nil:
				errs++
			case ok:
				indexed++
			default:
				skipped++
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("scan aborted", "root", root, "error", err)
			break
		}
	}

	s.mu.Lock()
	finished := time.Now()
	s.status = ScanStatus{
		Indexed:    indexed,
		Skipped:    skipped,
		Errors:     errs,
		StartedAt:  s.status.StartedAt,
		FinishedAt: &finished,
	}
	s.mu.Unlock()

	s.logger.Info("vault scan complete", "indexed", indexed, "skipped", skipped, "errors", errs)
	s.publish(events.EventVaultScanDone, "Vault scan complete",
		fmt.Sprintf("%d indexed, %d skipped, %d errors", indexed, skipped, errs))

	if indexed > 0 {
		s.publish(events.EventVaultChanged, "Vault changed", fmt.Sprintf("%d files indexed", indexed))
	}
	return nil
}

func (s *Scanner) publish(eventType events.EventType, title, message string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishAsync(events.NewEvent(eventType, "vaultmodule", title, message))
}
