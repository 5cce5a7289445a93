/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report file, a best-effort
// autosave of the open document's setup, and a clean non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/storage"
	"github.com/easiwriter/WritingShedPro-sub015/internal/telemetry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Recover stops an in-flight panic and hands it to Handle. It must be
// deferred directly (defer crash.Recover(dh)); wrapping it in another
// function puts recover one frame too deep and the panic sails past.
// Callers that need the handle resolved at panic time recover themselves:
//
//	defer func() {
//		if r := recover(); r != nil {
//			crash.Handle(r, openDoc)
//		}
//	}()
func Recover(dh *storage.DocumentHandle) {
	if r := recover(); r != nil {
		Handle(r, dh)
	}
}

// Handle logs the panic value with its stacktrace, writes an error report
// file, attempts a crash-safe autosave of the document setup (if provided),
// and exits non-zero.
func Handle(r any, dh *storage.DocumentHandle) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, _ := writeReport(dh, r, stack)
	if dh != nil {
		if path, err := storage.AutosaveCrashSnapshot(dh); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	// Exit with a non-zero code to indicate failure in CLI context.
	exitFn(2)
}

func writeReport(dh *storage.DocumentHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if dh != nil && dh.Root != "" {
		dir = filepath.Join(dh.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Writing Shed Pro Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if dh != nil {
		_, _ = fmt.Fprintf(&buf, "DocumentRoot: %s\n", dh.Root)
		_, _ = fmt.Fprintf(&buf, "PageSetup: %s\n", dh.SetupPath)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	// write to file
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// optionally upload anonymized crash report (opt-in via env)
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
