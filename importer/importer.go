// Package importer turns CSV prospect sheets dropped into the import
// directory into contact lists, via the shared worker queue.
package importer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"coldcall_crm/metrics"
	"coldcall_crm/queue"
	"coldcall_crm/store"
)

const (
	enqueueWindow   = 30 * time.Second
	enqueueInterval = 500 * time.Millisecond
	// writers may still be flushing when the create event fires
	settleDelay = 250 * time.Millisecond
)

// Importer monitors the import directory for new CSV files and enqueues
// import jobs for them.
type Importer struct {
	dir     string
	userID  string
	store   *store.Store
	queue   *queue.Queue
	metrics *metrics.Metrics
}

// New creates an importer. userID is the account the imported lists belong to.
func New(dir, userID string, st *store.Store, q *queue.Queue, m *metrics.Metrics) *Importer {
	return &Importer{dir: dir, userID: userID, store: st, queue: q, metrics: m}
}

// Start begins watching the import directory. It returns once the watch is
// established; events are handled on a background goroutine until ctx ends.
func (im *Importer) Start(ctx context.Context) error {
	if err := os.MkdirAll(im.dir, 0o755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isCSV(evt.Name) {
					time.Sleep(settleDelay)
					im.enqueueFile(ctx, evt.Name)
				}
			case err := <-watcher.Errors:
				log.Printf("import watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(im.dir)
}

// Scan enqueues import jobs for CSV files already present in the directory,
// skipping sources that were imported before.
func (im *Importer) Scan(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(im.dir, "*"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		if !isCSV(path) {
			continue
		}
		existing, err := im.store.FindContactListBySource(ctx, filepath.Base(path))
		if err != nil {
			log.Printf("import scan lookup %s: %v", path, err)
			continue
		}
		if existing != 0 {
			continue
		}
		im.enqueueFile(ctx, path)
	}
	return nil
}

func (im *Importer) enqueueFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	job := queue.Job{
		ID:     name,
		Source: "import",
		Work: func(jobCtx context.Context) error {
			return im.importFile(jobCtx, path)
		},
	}
	enqueued, droppedFull := im.queue.EnqueueWithRetry(ctx, job, enqueueWindow, enqueueInterval)
	if !enqueued {
		if droppedFull {
			log.Printf("import queue full, dropping %s", name)
		}
		return
	}
	log.Printf("import queued file=%s", name)
}

func (im *Importer) importFile(ctx context.Context, path string) error {
	sourceFile := filepath.Base(path)
	job, err := im.store.RecordOpsJob(ctx, "import", map[string]string{"file": sourceFile})
	if err != nil {
		return fmt.Errorf("record import job: %w", err)
	}

	accepted, err := im.runImport(ctx, job.ID, path, sourceFile)
	if err != nil {
		im.store.AppendOpsLog(job.ID, "error", err.Error())
		im.store.CompleteOpsJob(job.ID, accepted, err.Error())
		return err
	}
	im.store.CompleteOpsJob(job.ID, accepted, "")
	return nil
}

func (im *Importer) runImport(ctx context.Context, jobID, path, sourceFile string) (int, error) {
	existing, err := im.store.FindContactListBySource(ctx, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("lookup source: %w", err)
	}
	if existing != 0 {
		im.store.AppendOpsLog(jobID, "info", fmt.Sprintf("%s already imported as list %d", sourceFile, existing))
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", sourceFile, err)
	}
	defer f.Close()

	contacts, skipped, err := ParseContacts(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", sourceFile, err)
	}
	if skipped > 0 {
		im.store.AppendOpsLog(jobID, "warn", fmt.Sprintf("skipped %d rows without name or phone", skipped))
	}
	if len(contacts) == 0 {
		return 0, fmt.Errorf("%s contains no usable contacts", sourceFile)
	}

	listID, err := im.store.CreateContactList(ctx, im.userID, ListName(sourceFile), sourceFile)
	if err != nil {
		return 0, fmt.Errorf("create list: %w", err)
	}
	accepted, err := im.store.AddContacts(ctx, listID, contacts)
	if err != nil {
		return accepted, fmt.Errorf("insert contacts: %w", err)
	}
	if im.metrics != nil {
		im.metrics.RecordImportedRows(accepted)
	}
	im.store.AppendOpsLog(jobID, "info", fmt.Sprintf("imported %d contacts into list %d", accepted, listID))
	return accepted, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
