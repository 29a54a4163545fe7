package collect_logs

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/capture"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/version"
)

// Invoker runs one external command
type Invoker interface {
	Invoke(ctx context.Context, cmd capture.Command, label string) *invoker.Result
}

// Sources lists what goes into the support bundle
type Sources struct {
	// LogDir holds the tool's log files and their rotated backups
	LogDir string
	// ConfigPath is the configuration file in use, empty when running on defaults
	ConfigPath string
	// Invoker, when set, is used to record `netsh trace show status`
	Invoker Invoker
}

// CollectLogs creates a zip archive with logs, config, version, system info
// and the current netsh trace status for diagnostics. Trace files are never
// included. Missing sources are skipped.
func CollectLogs(ctx context.Context, zipName string, src Sources) error {
	zipFile, err := os.Create(zipName)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	if src.LogDir != "" {
		if entries, err := os.ReadDir(src.LogDir); err == nil {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(src.LogDir, entry.Name())
				_ = addFileToZip(zipWriter, path, filepath.Join("logs", entry.Name())) // Non-fatal
			}
		}
	}

	if src.ConfigPath != "" {
		if _, err := os.Stat(src.ConfigPath); err == nil {
			_ = addFileToZip(zipWriter, src.ConfigPath, filepath.Base(src.ConfigPath)) // Non-fatal
		}
	}

	if err := addStringToZip(zipWriter, "version.txt", version.Version+"\n"); err != nil {
		return fmt.Errorf("failed to write version.txt: %w", err)
	}
	if err := addStringToZip(zipWriter, "system-info.txt", getSystemInfo()); err != nil {
		return fmt.Errorf("failed to write system-info.txt: %w", err)
	}

	if src.Invoker != nil {
		res := src.Invoker.Invoke(ctx, capture.StatusCommand(), "trace status")
		if err := addStringToZip(zipWriter, "netsh-trace-status.txt", formatResult(res)); err != nil {
			return fmt.Errorf("failed to write netsh-trace-status.txt: %w", err)
		}
	}

	return zipWriter.Close()
}

func formatResult(res *invoker.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", res.Command)
	if res.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", res.Err)
		return b.String()
	}
	fmt.Fprintf(&b, "Status: %s\n", res.Status)
	if len(res.Stdout) > 0 {
		b.WriteString("--- stdout ---\n")
		b.Write(res.Stdout)
		b.WriteString("\n")
	}
	if len(res.Stderr) > 0 {
		b.WriteString("--- stderr ---\n")
		b.Write(res.Stderr)
		b.WriteString("\n")
	}
	return b.String()
}

func addFileToZip(zipWriter *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := zipWriter.Create(filepath.ToSlash(name))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func addStringToZip(zipWriter *zip.Writer, filename, content string) error {
	w, err := zipWriter.Create(filename)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

func getSystemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OS: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "Arch: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "NumCPU: %d\n", runtime.NumCPU())
	if hn, err := os.Hostname(); err == nil {
		fmt.Fprintf(&b, "Hostname: %s\n", hn)
	}
	return b.String()
}
