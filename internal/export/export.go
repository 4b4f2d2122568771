// Package export writes a filtered series as a spreadsheet-friendly CSV
// file: UTF-8 with a byte-order mark, a localized header and
// day.month.year timestamps.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
)

// BOM makes spreadsheet applications detect UTF-8.
const BOM = "\uFEFF"

// TimestampHeader is the first column header.
const TimestampHeader = "Дата и время"

// TimestampLayout renders timestamps as dd.mm.yyyy HH:MM:SS.
const TimestampLayout = "02.01.2006 15:04:05"

// ErrEmpty is returned when there is nothing to export. Nothing is written.
var ErrEmpty = errors.New("нет данных для экспорта")

// CSV writes samples as CSV to w. Timestamps are rendered in loc (nil means
// time.Local). Values use the shortest exact decimal form.
func CSV(w io.Writer, samples []model.Sample, def metric.Definition, loc *time.Location) error {
	if len(samples) == 0 {
		return ErrEmpty
	}
	if loc == nil {
		loc = time.Local
	}
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{TimestampHeader, def.Label}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			s.Timestamp.In(loc).Format(TimestampLayout),
			strconv.FormatFloat(s.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename returns the export file name for a metric at now:
// ugagro_<metric>_<unix-millis>.csv.
func Filename(id model.MetricID, now time.Time) string {
	return fmt.Sprintf("ugagro_%s_%d.csv", id, now.UnixMilli())
}
