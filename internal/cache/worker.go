package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/adelyne/pydex/internal/logger"
	"github.com/adelyne/pydex/internal/model"
	"github.com/adelyne/pydex/internal/pysrc"
)

var log = logger.ForComponent("cache")

type WorkerConfig struct {
	WorkerCount     int
	MaxQueueSize    int
	RateLimit       int
	MaxFileSize     int64
	ExcludePatterns []string
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:  2,
		MaxQueueSize: 1000,
		RateLimit:    100,
		MaxFileSize:  10 * 1024 * 1024,
		ExcludePatterns: []string{
			"**/__pycache__/**",
			"**/.git/**",
			"**/.tox/**",
			"**/.venv/**",
			"**/venv/**",
			"**/node_modules/**",
			"**/build/**",
			"**/dist/**",
		},
	}
}

type WorkerStats struct {
	Extracted     int64
	Failed        int64
	Skipped       int64
	InQueue       int64
	IsRunning     bool
	StartedAt     time.Time
	LastExtracted time.Time
}

// Worker drains extraction jobs into the store. Three queues give file
// watcher events priority over bulk scans.
type Worker struct {
	store  *Store
	config WorkerConfig

	highQueue   chan Job
	normalQueue chan Job
	lowQueue    chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	rateLimiter *time.Ticker

	stats   WorkerStats
	statsMu sync.RWMutex
}

func NewWorker(store *Store, config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:       store,
		config:      config,
		highQueue:   make(chan Job, 100),
		normalQueue: make(chan Job, config.MaxQueueSize),
		lowQueue:    make(chan Job, config.MaxQueueSize*2),
		ctx:         ctx,
		cancel:      cancel,
	}

	if config.RateLimit > 0 {
		interval := time.Second / time.Duration(config.RateLimit)
		w.rateLimiter = time.NewTicker(interval)
	}

	return w
}

func (w *Worker) Start() {
	w.statsMu.Lock()
	w.stats.IsRunning = true
	w.stats.StartedAt = time.Now()
	w.statsMu.Unlock()

	log.Info("cache worker started", "workers", w.config.WorkerCount)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
}

func (w *Worker) Stop() {
	log.Info("cache worker stopping")

	w.cancel()
	if w.rateLimiter != nil {
		w.rateLimiter.Stop()
	}
	w.wg.Wait()

	w.statsMu.Lock()
	w.stats.IsRunning = false
	w.statsMu.Unlock()

	log.Info("cache worker stopped")
}

func (w *Worker) Enqueue(job Job) bool {
	var queue chan Job
	switch job.Priority {
	case PriorityHigh:
		queue = w.highQueue
	case PriorityNormal:
		queue = w.normalQueue
	case PriorityLow:
		queue = w.lowQueue
	default:
		queue = w.normalQueue
	}

	select {
	case queue <- job:
		atomic.AddInt64(&w.stats.InQueue, 1)
		return true
	default:
		log.Warn("job enqueue failed - queue full", "path", job.Path, "priority", job.Priority)
		return false
	}
}

func (w *Worker) EnqueueBatch(paths []string, priority JobPriority) int {
	count := 0
	for _, path := range paths {
		if w.Enqueue(Job{Path: path, Priority: priority}) {
			count++
		}
	}
	return count
}

func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.InQueue = atomic.LoadInt64(&w.stats.InQueue)
	return stats
}

func (w *Worker) worker(id int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if w.rateLimiter != nil {
			select {
			case <-w.rateLimiter.C:
			case <-w.ctx.Done():
				return
			}
		}

		var job Job
		var ok bool

		select {
		case job, ok = <-w.highQueue:
		default:
			select {
			case job, ok = <-w.normalQueue:
			default:
				select {
				case job, ok = <-w.lowQueue:
				default:
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}
		}

		if !ok {
			continue
		}

		atomic.AddInt64(&w.stats.InQueue, -1)
		log.Debug("worker processing job", "worker_id", id, "path", job.Path)
		w.processJob(job)
	}
}

func (w *Worker) processJob(job Job) {
	path := job.Path

	if w.shouldExclude(path) || !strings.HasSuffix(path, ".py") {
		w.recordSkipped()
		log.Debug("skipped file", "path", path, "reason", "excluded by pattern")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			w.store.DeleteFile(path)
			return
		}
		w.recordFailed(path, err.Error())
		log.Warn("failed to extract", "path", path, "error", err)
		return
	}

	if info.IsDir() {
		return
	}

	if info.Size() > w.config.MaxFileSize {
		w.recordSkipped()
		w.store.UpdateFileStatus(path, StatusSkipped, "file too large")
		log.Debug("skipped file", "path", path, "reason", "file too large")
		return
	}

	existing, _ := w.store.GetFile(path)

	content, encoding, err := pysrc.ReadFileAsUTF8(path)
	if err != nil {
		w.recordFailed(path, err.Error())
		log.Warn("failed to extract", "path", path, "error", err)
		return
	}

	hash := sha256.Sum256([]byte(content))
	hashStr := hex.EncodeToString(hash[:])

	if existing != nil && existing.ContentHash == hashStr {
		log.Debug("skipped file", "path", path, "reason", "content unchanged")
		return
	}

	file := &CachedFile{
		Path:        path,
		ContentHash: hashStr,
		Encoding:    encoding.Encoding,
		Status:      StatusExtracted,
		ExtractedAt: time.Now(),
	}

	fileID, err := w.store.UpsertFile(file)
	if err != nil {
		w.recordFailed(path, err.Error())
		log.Warn("failed to extract", "path", path, "error", err)
		return
	}

	objects := flattenModule(pysrc.ScanModule(content), moduleName(path))
	if err := w.store.ReplaceObjects(fileID, objects); err != nil {
		w.recordFailed(path, err.Error())
		log.Warn("failed to extract", "path", path, "error", err)
		return
	}

	w.recordExtracted()
	log.Info("file extracted", "path", path, "objects", len(objects))

	current := atomic.LoadInt64(&w.stats.Extracted)
	if current%100 == 0 {
		queueSize := atomic.LoadInt64(&w.stats.InQueue)
		log.Info("extraction progress", "extracted", current, "pending", queueSize)
	}
}

func (w *Worker) shouldExclude(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.config.ExcludePatterns {
		if matched, err := doublestar.Match(pattern, slashed); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Worker) recordExtracted() {
	atomic.AddInt64(&w.stats.Extracted, 1)
	w.statsMu.Lock()
	w.stats.LastExtracted = time.Now()
	w.statsMu.Unlock()
}

func (w *Worker) recordFailed(path, errMsg string) {
	atomic.AddInt64(&w.stats.Failed, 1)
	w.store.UpdateFileStatus(path, StatusFailed, errMsg)
}

func (w *Worker) recordSkipped() {
	atomic.AddInt64(&w.stats.Skipped, 1)
}

func moduleName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, ".py")
	if name == "__init__" {
		return filepath.Base(filepath.Dir(path))
	}
	return name
}

// flattenModule turns a scanned tree into rows keyed by dotted path.
func flattenModule(mod *pysrc.Module, name string) []*CachedObject {
	var objects []*CachedObject

	objects = append(objects, &CachedObject{
		Path:      name,
		Name:      name,
		Kind:      string(model.KindModule),
		Docstring: firstLine(mod.Docstring),
		LineStart: 1,
	})

	for _, attr := range mod.Attributes {
		objects = append(objects, attrObject(attr, name))
	}
	for _, node := range mod.Children {
		objects = append(objects, flattenNode(node, name)...)
	}
	return objects
}

func flattenNode(node *pysrc.Node, parentPath string) []*CachedObject {
	path := parentPath + "." + node.Name

	obj := &CachedObject{
		Path:      path,
		Name:      node.Name,
		Kind:      node.Kind,
		Docstring: firstLine(node.Docstring),
		LineStart: node.LineStart,
		LineEnd:   node.LineEnd,
	}
	if node.Kind == "function" {
		fn := model.NewObject(node.Name, model.KindFunction)
		fn.Parameters = model.NewParameters(node.Parameters.List()...)
		fn.Returns = node.Returns
		obj.Signature = fn.Signature()
	}

	objects := []*CachedObject{obj}
	for _, attr := range node.Attributes {
		objects = append(objects, attrObject(attr, path))
	}
	for _, child := range node.Children {
		objects = append(objects, flattenNode(child, path)...)
	}
	return objects
}

func attrObject(attr pysrc.Attribute, parentPath string) *CachedObject {
	return &CachedObject{
		Path:      parentPath + "." + attr.Name,
		Name:      attr.Name,
		Kind:      string(model.KindAttribute),
		Docstring: firstLine(attr.Docstring),
		LineStart: attr.Line,
		LineEnd:   attr.Line,
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(model.Cleandoc(s))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
