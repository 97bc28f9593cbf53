// Package stocks supplies the universe of stock codes a harvest round
// walks. The universe changes rarely, so file loads are cached for a
// day.
package stocks

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// DefaultCacheTTL is how long one file load stays authoritative.
const DefaultCacheTTL = 24 * time.Hour

// FileSource reads a "code,name" CSV and filters out stocks whose
// feeds are dead weight: ST-flagged names and delisting candidates.
type FileSource struct {
	path   string
	ttl    time.Duration
	clock  harvest.Clock
	logger *zap.Logger

	mu       sync.Mutex
	cached   []string
	loadedAt time.Time
}

// NewFileSource builds a source over one CSV file.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		path:   path,
		ttl:    DefaultCacheTTL,
		clock:  harvest.SystemClock{},
		logger: logger.Named("stocks"),
	}
}

// Stocks implements harvest.StockSource.
func (s *FileSource) Stocks(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.clock.Now().Sub(s.loadedAt) < s.ttl {
		return append([]string(nil), s.cached...), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cached = codes
	s.loadedAt = s.clock.Now()
	s.logger.Info("stock universe loaded", zap.String("path", s.path), zap.Int("count", len(codes)))
	return append([]string(nil), codes...), nil
}

func (s *FileSource) load() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open stock list: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stock list: %w", err)
	}

	var codes []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		name := ""
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}
		if !Tradable(code, name) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("stock list %s holds no tradable codes", s.path)
	}
	return codes, nil
}

// Tradable filters the universe down to feeds worth harvesting. ST
// names mark stocks under delisting risk warning and "退" marks the
// delisting period itself; both feeds are mostly noise.
func Tradable(code, name string) bool {
	if code == "" || !isDigits(code) {
		return false
	}
	if strings.Contains(name, "ST") || strings.Contains(name, "退") {
		return false
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StaticSource serves a fixed code list, for single-shot CLI runs.
type StaticSource []string

// Stocks implements harvest.StockSource.
func (s StaticSource) Stocks(context.Context) ([]string, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no stock codes configured")
	}
	return append([]string(nil), s...), nil
}
