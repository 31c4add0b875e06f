package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// crashDir is where crash reports land; set once at startup
var crashDir = "./logs"

// InstallCrashHandler fixes the crash report directory. Called from main
// before anything that can panic.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		crashDir = logDir
	}
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot create report directory: %v\n", err)
	}
}

// WriteCrashFile persists a crash report and returns its path. Called from
// panic recovery handlers; must not itself panic, so every failure falls
// back to stderr.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	path := filepath.Join(crashDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "congruo crash report\n")
	fmt.Fprintf(&report, "time:    %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "version: %s\n", GetFullVersion())
	fmt.Fprintf(&report, "runtime: %s\n\n", GetRuntimeInfo())

	fmt.Fprintf(&report, "panic: %v\n\n", panicVal)
	fmt.Fprintf(&report, "--- panicking goroutine ---\n%s\n", stackTrace)
	fmt.Fprintf(&report, "--- all goroutines ---\n%s\n", allGoroutineStacks())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	fmt.Fprintf(&report, "--- process ---\n")
	fmt.Fprintf(&report, "goroutines=%d cpus=%d alloc_mb=%d sys_mb=%d gc_runs=%d\n",
		runtime.NumGoroutine(), runtime.NumCPU(),
		memStats.Alloc/1024/1024, memStats.Sys/1024/1024, memStats.NumGC)

	// Unbuffered write; crash paths cannot rely on deferred flushes
	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot write report: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to %s !!!\npanic: %v\n", path, panicVal)
	return path
}

// allGoroutineStacks dumps every goroutine, growing the buffer until the
// dump fits (capped at 64 MB).
func allGoroutineStacks() string {
	for size := 64 * 1024; ; size *= 2 {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < size || size >= 64*1024*1024 {
			return string(buf[:n])
		}
	}
}

// GetStackTrace returns the calling goroutine's stack
func GetStackTrace() string {
	buf := make([]byte, 8192)
	return string(buf[:runtime.Stack(buf, false)])
}

// RecoverWithCrashFile is deferred at the top of main: a panic that reaches
// it is unrecoverable, so the report is written and the process exits.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}
