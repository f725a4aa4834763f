package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/nukk-pain/smpain-hr/internal/domain"
	"github.com/nukk-pain/smpain-hr/pkg/cellconv"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned for zero-byte or all-blank uploads.
	ErrEmptyFile = errors.New("file is empty")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// MissingColumnsError is the structural failure for a workbook whose header
// row lacks required payroll columns. It aborts the whole file: per-row
// validation is meaningless without the columns it would validate.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("required columns missing: %s", strings.Join(e.Missing, ", "))
}

// Progress is reported to the caller after each decoded chunk.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ReaderOptions bound the reader's per-call resource use.
type ReaderOptions struct {
	// ChunkSize is the number of rows decoded per window.
	ChunkSize int
	// SmallFileThreshold is the row count under which chunking is skipped.
	SmallFileThreshold int
	// MemoryLimitBytes caps heap growth during one Read call. Zero disables
	// the check.
	MemoryLimitBytes uint64
}

// DefaultReaderOptions match the sizes the original uploads run at.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		ChunkSize:          500,
		SmallFileThreshold: 100,
		MemoryLimitBytes:   256 << 20,
	}
}

// Reader decodes payroll workbooks in bounded-size windows.
type Reader struct {
	opts ReaderOptions
}

// NewReader creates a reader with the given bounds.
func NewReader(opts ReaderOptions) *Reader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultReaderOptions().ChunkSize
	}
	if opts.SmallFileThreshold <= 0 {
		opts.SmallFileThreshold = DefaultReaderOptions().SmallFileThreshold
	}
	return &Reader{opts: opts}
}

// Read decodes the workbook into coerced rows. Cell coercion is applied
// here; business validation is the validator's job. Rows come back in
// source order with 1-based, header-inclusive row numbers. Between chunks
// the reader reports progress and yields so a huge file cannot monopolize
// the worker; if heap growth exceeds the configured ceiling it requests a
// garbage pass and, failing that, flags the breach in the stats instead of
// aborting.
func (r *Reader) Read(ctx context.Context, fileName string, payload []byte, onProgress func(Progress)) ([]domain.DecodedRow, domain.ReadStats, error) {
	stats := domain.ReadStats{}
	if len(payload) == 0 {
		return nil, stats, ErrEmptyFile
	}

	records, err := parseRecords(fileName, payload)
	if err != nil {
		return nil, stats, err
	}

	headers, headerIndex, dataRows, err := resolveHeader(records)
	if err != nil {
		return nil, stats, err
	}
	stats.HeaderRow = headerIndex + 1
	stats.TotalRows = len(dataRows)

	if missing := missingColumns(headers); len(missing) > 0 {
		return nil, stats, &MissingColumnsError{Missing: missing}
	}

	chunkSize := r.opts.ChunkSize
	stats.Chunked = len(dataRows) >= r.opts.SmallFileThreshold
	if !stats.Chunked {
		chunkSize = len(dataRows)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	var baseline runtime.MemStats
	if r.opts.MemoryLimitBytes > 0 {
		runtime.ReadMemStats(&baseline)
	}

	rows := make([]domain.DecodedRow, 0, len(dataRows))
	for start := 0; start < len(dataRows); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		end := start + chunkSize
		if end > len(dataRows) {
			end = len(dataRows)
		}

		for idx := start; idx < end; idx++ {
			rows = append(rows, decodeRow(headers, dataRows[idx].cells, dataRows[idx].number))
		}
		stats.Chunks++

		if onProgress != nil {
			onProgress(Progress{Processed: len(rows), Total: len(dataRows)})
		}

		if stats.Chunked {
			if r.opts.MemoryLimitBytes > 0 && heapGrowth(&baseline) > r.opts.MemoryLimitBytes {
				runtime.GC()
				if heapGrowth(&baseline) > r.opts.MemoryLimitBytes {
					stats.MemoryDegraded = true
				}
			}
			runtime.Gosched()
		}
	}

	return rows, stats, nil
}

func heapGrowth(baseline *runtime.MemStats) uint64 {
	var current runtime.MemStats
	runtime.ReadMemStats(&current)
	if current.HeapAlloc <= baseline.HeapAlloc {
		return 0
	}
	return current.HeapAlloc - baseline.HeapAlloc
}

func parseRecords(fileName string, payload []byte) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// sourceRow pairs a data row with its 1-based position in the sheet.
// Blank rows are dropped but never renumber what follows them, so a
// reported row number always matches what the user sees in the file.
type sourceRow struct {
	number int
	cells  []string
}

// resolveHeader picks the first non-empty row as the header and maps its
// labels to canonical field names. Unknown columns are kept under their
// trimmed label so extra columns never fail an upload.
func resolveHeader(records [][]string) ([]string, int, []sourceRow, error) {
	var headerRow []string
	headerIndex := -1
	var dataRows []sourceRow

	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			headerIndex = idx
			continue
		}
		dataRows = append(dataRows, sourceRow{number: idx + 1, cells: row})
	}

	if headerRow == nil {
		return nil, -1, nil, ErrEmptyFile
	}

	headers := make([]string, len(headerRow))
	for idx, label := range headerRow {
		label = strings.TrimSpace(label)
		if canonical, ok := domain.ColumnLabels[label]; ok {
			headers[idx] = canonical
		} else {
			headers[idx] = label
		}
	}

	for i := range dataRows {
		dataRows[i].cells = padRow(dataRows[i].cells, len(headers))
	}

	return headers, headerIndex, dataRows, nil
}

func missingColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, header := range headers {
		present[header] = true
	}
	var missing []string
	for _, required := range domain.RequiredColumns {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	sort.Strings(missing)
	return missing
}

func decodeRow(headers []string, row []string, rowNumber int) domain.DecodedRow {
	decoded := domain.DecodedRow{
		RowNumber: rowNumber,
		Fields:    make(map[string]domain.FieldValue, len(headers)),
	}

	for colIdx, header := range headers {
		if header == "" || colIdx >= len(row) {
			continue
		}
		raw := row[colIdx]

		if domain.TextFields[header] {
			decoded.Fields[header] = domain.FieldValue{
				Raw:  raw,
				Text: cellconv.String(raw),
			}
			continue
		}

		if strings.TrimSpace(raw) == "" {
			decoded.Fields[header] = domain.FieldValue{Raw: raw}
			continue
		}

		result := cellconv.Number(raw)
		decoded.Fields[header] = domain.FieldValue{
			Raw:     raw,
			Number:  result.Value,
			Fix:     result.Fix,
			Invalid: !result.Valid,
			Reason:  result.Reason,
		}
	}

	return decoded
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
