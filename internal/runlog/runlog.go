// Package runlog keeps a local JSON lines archive of daily report runs, one
// file per day, so a run leaves a trace even without a database.
package runlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

// Entry is one daily report run.
type Entry struct {
	Time           string `json:"time"`
	RunID          string `json:"run_id,omitempty"`
	ReportDate     string `json:"report_date"`
	Account        string `json:"account"`
	Currency       string `json:"currency"`
	PortfolioValue string `json:"portfolio_value"`
	DailyPnL       string `json:"daily_pnl"`
	UnrealizedPnL  string `json:"unrealized_pnl"`
	Delivered      bool   `json:"delivered"`
	Error          string `json:"error,omitempty"`
}

// Dir is the archive root, REPORT_LOG_DIR or "logs".
func Dir() string {
	if v := os.Getenv("REPORT_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time) string {
	return filepath.Join(Dir(), "runs", t.Format("2006-01-02")+".txt")
}

// Append stamps e with the current time and appends it to today's file.
func Append(e Entry) (string, error) {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now()
	e.Time = now.Format("2006-01-02 15:04:05")
	p := dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	_, err = fmt.Fprintln(f, string(b))
	return p, err
}

// ReadDay returns the runs archived for the day of t. A missing file yields
// no entries; lines that are not valid JSON are skipped.
func ReadDay(t time.Time) ([]Entry, error) {
	f, err := os.Open(dailyFilepath(t))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips archive files last modified more than retentionDays
// ago and removes the uncompressed files. Zero or negative retention keeps everything.
func CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(Dir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		compressed++
		return os.Remove(p)
	})
	if os.IsNotExist(err) {
		return compressed, nil
	}
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
