// Package planwatch ingests plan files dropped into a watched directory.
// Files are parsed, submitted to the coordinator, and moved into
// processed/ or failed/ depending on the outcome.
package planwatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/pkg/models"
)

// PlanFile is the on-disk plan format. It wraps a plan with the mission
// it targets and, optionally, the squad lead task that produced it.
type PlanFile struct {
	// MissionID identifies the mission the plan belongs to.
	MissionID string `json:"mission_id" yaml:"mission_id"`
	// LeadTaskID is the planning task that authored the plan, if any.
	LeadTaskID string `json:"lead_task_id,omitempty" yaml:"lead_task_id,omitempty"`
	// Tasks lists the work items to materialize.
	Tasks []models.PlanTask `json:"tasks" yaml:"tasks"`
	// Agents lists the worker identities the plan expects.
	Agents []models.PlanAgent `json:"agents" yaml:"agents"`
	// Dependencies optionally lists extra dependency edges between tasks.
	Dependencies []models.PlanDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Watcher monitors a directory for plan files and submits them to the
// coordinator as they appear.
type Watcher struct {
	dir   string
	coord *orchestrator.Coordinator
	log   *orchestrator.DebugLogger

	pollInterval time.Duration

	mu      sync.Mutex
	seen    map[string]bool
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the debug logger.
func WithLogger(l *orchestrator.DebugLogger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithPollInterval sets how often the directory is rescanned for files
// the filesystem watcher missed.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// NewWatcher creates a watcher for the given drop directory. The directory
// and its processed/ and failed/ subdirectories are created if missing.
func NewWatcher(dir string, coord *orchestrator.Coordinator, opts ...Option) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("plan watch directory is empty")
	}

	for _, sub := range []string{dir, filepath.Join(dir, "processed"), filepath.Join(dir, "failed")} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("creating plan directory: %w", err)
		}
	}

	w := &Watcher{
		dir:          dir,
		coord:        coord,
		log:          orchestrator.NopLogger(),
		pollInterval: 30 * time.Second,
		seen:         make(map[string]bool),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. Existing files in the directory are processed
// first, then filesystem events drive ingestion, with a periodic rescan
// as a fallback for missed events.
func (w *Watcher) Start() error {
	w.scan()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - polling still covers the directory
		w.log.Log("planwatch: fsnotify unavailable, polling only: %v", err)
	} else {
		if err := fw.Add(w.dir); err != nil {
			fw.Close()
			w.log.Log("planwatch: watch %s failed, polling only: %v", w.dir, err)
		} else {
			w.watcher = fw
		}
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop shuts the watcher down and waits for in-flight processing.
func (w *Watcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errors chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errors = w.watcher.Errors
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isPlanFile(event.Name) {
				continue
			}
			// Writers may still be flushing when the event fires.
			time.Sleep(100 * time.Millisecond)
			w.process(event.Name)
		case err, ok := <-errors:
			if !ok {
				errors = nil
				continue
			}
			w.log.Log("planwatch: watch error: %v", err)
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan processes every plan file currently in the drop directory.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Log("planwatch: scan %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isPlanFile(entry.Name()) {
			continue
		}
		w.process(filepath.Join(w.dir, entry.Name()))
	}
}

// process parses and submits one plan file, then moves it to processed/
// or failed/. Duplicate events for a file already being handled are
// dropped; files already moved out of the directory fail the stat check.
func (w *Watcher) process(path string) {
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
	}()

	if _, err := os.Stat(path); err != nil {
		return
	}

	pf, err := ParseFile(path)
	if err != nil {
		w.log.Log("planwatch: parse %s: %v", path, err)
		w.moveTo(path, "failed")
		return
	}

	plan := &models.Plan{Tasks: pf.Tasks, Agents: pf.Agents, Dependencies: pf.Dependencies}
	result, err := w.coord.ProcessPlan(pf.MissionID, pf.LeadTaskID, plan)
	if err != nil {
		w.log.Log("planwatch: submit %s: %v", path, err)
		w.moveTo(path, "failed")
		return
	}

	if len(result.Errors) > 0 {
		w.log.Log("planwatch: %s applied with %d errors: %s", path, len(result.Errors), strings.Join(result.Errors, "; "))
	} else {
		w.log.Log("planwatch: %s applied: %d tasks, %d agents", path, len(result.TasksCreated), len(result.AgentsCreated)+len(result.AgentsReused))
	}
	w.moveTo(path, "processed")
}

// moveTo relocates a handled file into the named subdirectory, suffixing
// a timestamp so repeated drops of the same name never collide.
func (w *Watcher) moveTo(path, sub string) {
	name := filepath.Base(path)
	stamp := time.Now().Format("20060102-150405")
	dest := filepath.Join(w.dir, sub, stamp+"-"+name)
	if err := os.Rename(path, dest); err != nil {
		w.log.Log("planwatch: move %s to %s: %v", path, sub, err)
	}
}

// ParseFile reads a plan file, dispatching on extension.
func ParseFile(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pf := &PlanFile{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, pf); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, pf); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan file extension %q", filepath.Ext(path))
	}

	if pf.MissionID == "" {
		return nil, fmt.Errorf("plan file missing mission_id")
	}
	return pf, nil
}

// isPlanFile reports whether the filename looks like a plan document.
func isPlanFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
