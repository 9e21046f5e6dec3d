package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"physkey/internal/config"
)

// CrashReport is written for every recovered panic.
type CrashReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Component  string    `json:"component"`
	Operation  string    `json:"operation"`
	GOOS       string    `json:"goos"`
	GOARCH     string    `json:"goarch"`
	GoVersion  string    `json:"go_version"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
}

// CrashHandler recovers panics in host callbacks so that a bug in one key
// event does not take down the input method process.
type CrashHandler struct {
	mu        sync.Mutex
	dir       string
	component string
	logger    *Logger
	seq       int
}

// DefaultCrashDir returns the directory crash reports are written to.
func DefaultCrashDir() string {
	return filepath.Join(config.PlatformDataDir(), "crashes")
}

// NewCrashHandler writes reports under dir (DefaultCrashDir when empty)
// and logs through logger (Default when nil).
func NewCrashHandler(dir, component string, logger *Logger) *CrashHandler {
	if dir == "" {
		dir = DefaultCrashDir()
	}
	if logger == nil {
		logger = Default()
	}
	return &CrashHandler{dir: dir, component: component, logger: logger}
}

// Guard runs fn and converts a panic into an error after writing a crash
// report.
func (h *CrashHandler) Guard(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report := h.HandlePanic(op, r)
			err = fmt.Errorf("%s: panic: %s", op, report.PanicValue)
		}
	}()
	fn()
	return nil
}

// HandlePanic records a recovered panic value.
func (h *CrashHandler) HandlePanic(op string, panicValue any) CrashReport {
	report := CrashReport{
		Timestamp:  time.Now().UTC(),
		Component:  h.component,
		Operation:  op,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		GoVersion:  runtime.Version(),
		PanicValue: fmt.Sprint(panicValue),
		StackTrace: string(debug.Stack()),
	}

	path, err := h.write(report)
	if err != nil {
		h.logger.Error("crash report not written", "op", op, "panic", report.PanicValue, "error", err)
		return report
	}
	h.logger.Error("recovered panic", "op", op, "panic", report.PanicValue, "report", path)
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}

	h.seq++
	name := fmt.Sprintf("crash-%s-%s-%d.json", h.component, report.Timestamp.Format("20060102-150405"), h.seq)
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns the stored crash reports, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
	return reports, nil
}
