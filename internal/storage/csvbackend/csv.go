package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"input",
	"kind",
	"seed",
	"rank",
	"keywords_json",
	"variations_json",
	"suggestions_added",
	"ideas_added",
	"created_at",
	"duration_ms",
	"error",
}

// New opens a CSV run archive, writing the header row to a new file.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening csv archive: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv archive: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, run *storage.Run) error {
	keywordsJSON, err := json.Marshal(run.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	variationsJSON, err := json.Marshal(run.Variations)
	if err != nil {
		return fmt.Errorf("encoding variations: %w", err)
	}

	record := []string{
		run.ID,
		run.Input,
		string(run.Kind),
		run.Seed,
		run.Rank,
		string(keywordsJSON),
		string(variationsJSON),
		strconv.Itoa(run.SuggestionsAdded),
		strconv.Itoa(run.IdeasAdded),
		run.CreatedAt.Format(time.RFC3339Nano),
		strconv.FormatInt(run.Duration.Milliseconds(), 10),
		run.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking csv archive: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking csv archive: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	// Read headers
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Run{}, nil
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var matched []*storage.Run
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}

		run, ok := parseRecord(record)
		if !ok {
			continue // skip malformed rows
		}
		if filter.Match(run) {
			matched = append(matched, run)
		}
	}

	slices.Reverse(matched)
	return filter.Page(matched), nil
}

func parseRecord(record []string) (*storage.Run, bool) {
	if len(record) != len(headers) {
		return nil, false
	}

	run := &storage.Run{
		ID:    record[0],
		Input: record[1],
		Kind:  keyword.Kind(record[2]),
		Seed:  record[3],
		Rank:  record[4],
		Error: record[11],
	}
	if err := json.Unmarshal([]byte(record[5]), &run.Keywords); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(record[6]), &run.Variations); err != nil {
		return nil, false
	}
	run.SuggestionsAdded, _ = strconv.Atoi(record[7])
	run.IdeasAdded, _ = strconv.Atoi(record[8])
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, record[9])
	durationMs, _ := strconv.ParseInt(record[10], 10, 64)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, true
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
