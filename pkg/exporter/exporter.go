// Package exporter flattens persisted sessions into CSV files: per-lap and
// whole-session exports plus distance-aligned multi-lap comparisons.
package exporter

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"iracingtelemetry/pkg/session"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
)

const DefaultExportDir = "data/exports"

var csvHeader = []string{
	"lap", "time", "distance", "distance_pct", "speed", "throttle", "brake",
	"steering", "gear", "rpm", "lat_accel", "long_accel", "yaw_rate",
	"steering_wheel_angle",
}

type Exporter struct {
	exportDir string
}

func New(exportDir string) *Exporter {
	if exportDir == "" {
		exportDir = DefaultExportDir
	}
	return &Exporter{exportDir: exportDir}
}

func (e *Exporter) ExportDir() string {
	return e.exportDir
}

// ExportLap writes a single lap's telemetry to CSV. lapNumber is 1-based, as
// the user sees it.
func (e *Exporter) ExportLap(sess *session.Session, lapNumber int) (string, error) {
	lap, ok := sess.LapByNumber(lapNumber - 1)
	if !ok || len(lap.Telemetry) == 0 {
		return "", errors.Wrapf(ErrLapNotFound, "lap %d", lapNumber)
	}

	name := e.filename(sess, fmt.Sprintf("lap%d", lapNumber))
	return e.writeFile(name, func(w *csv.Writer) error {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
		return writeLapRows(w, *lap)
	})
}

// ExportLaps writes the given laps (1-based) concatenated into one CSV.
func (e *Exporter) ExportLaps(sess *session.Session, lapNumbers []int) (string, error) {
	laps := make([]session.Lap, 0, len(lapNumbers))
	for _, n := range lapNumbers {
		lap, ok := sess.LapByNumber(n - 1)
		if !ok {
			return "", errors.Wrapf(ErrLapNotFound, "lap %d", n)
		}
		laps = append(laps, *lap)
	}
	if len(laps) == 0 {
		return "", errors.Wrap(ErrLapNotFound, "no laps requested")
	}

	name := e.filename(sess, "laps"+lapRangeLabel(lapNumbers))
	return e.writeFile(name, func(w *csv.Writer) error {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
		for _, lap := range laps {
			if err := writeLapRows(w, lap); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportSession writes every lap of the session into one CSV.
func (e *Exporter) ExportSession(sess *session.Session) (string, error) {
	if len(sess.Laps) == 0 {
		return "", errors.Wrap(ErrLapNotFound, "session has no laps")
	}

	name := e.filename(sess, "complete")
	return e.writeFile(name, func(w *csv.Writer) error {
		return WriteSessionCSV(w, sess)
	})
}

// WriteSessionCSV streams the whole-session CSV to w.
func WriteSessionCSV(w *csv.Writer, sess *session.Session) error {
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, lap := range sess.Laps {
		if err := writeLapRows(w, lap); err != nil {
			return err
		}
	}
	return nil
}

// WriteLapCSV streams a single 1-based lap to w.
func WriteLapCSV(w *csv.Writer, sess *session.Session, lapNumber int) error {
	lap, ok := sess.LapByNumber(lapNumber - 1)
	if !ok || len(lap.Telemetry) == 0 {
		return errors.Wrapf(ErrLapNotFound, "lap %d", lapNumber)
	}
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	return writeLapRows(w, *lap)
}

// ExportComparison writes the distance-aligned comparison of 2+ laps
// (1-based). A requested lap that is missing or empty aborts the export.
func (e *Exporter) ExportComparison(sess *session.Session, lapNumbers []int) (string, error) {
	name := e.filename(sess, "comparison_laps"+lapRangeLabel(lapNumbers))

	// Resolve and resample before creating the file so a failure leaves
	// nothing on disk.
	rows, header, err := comparisonTable(sess, lapNumbers)
	if err != nil {
		return "", err
	}
	return e.writeFile(name, func(w *csv.Writer) error {
		if err := w.Write(header); err != nil {
			return err
		}
		return w.WriteAll(rows)
	})
}

// WriteComparisonCSV streams the comparison table to w.
func WriteComparisonCSV(w *csv.Writer, sess *session.Session, lapNumbers []int) error {
	rows, header, err := comparisonTable(sess, lapNumbers)
	if err != nil {
		return err
	}
	if err := w.Write(header); err != nil {
		return err
	}
	return w.WriteAll(rows)
}

func comparisonTable(sess *session.Session, lapNumbers []int) ([][]string, []string, error) {
	if len(lapNumbers) < 2 {
		return nil, nil, ErrInsufficientLaps
	}

	grid := DistanceGrid()
	type resampled struct {
		lapNumber int
		data      map[string][]float64
	}
	laps := make([]resampled, 0, len(lapNumbers))
	for _, n := range lapNumbers {
		lap, ok := sess.LapByNumber(n - 1)
		if !ok || len(lap.Telemetry) == 0 {
			return nil, nil, errors.Wrapf(ErrLapNotFound, "lap %d", n)
		}
		data, err := ResampleLap(lap.Telemetry, grid)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "resampling lap %d", n)
		}
		laps = append(laps, resampled{lapNumber: n, data: data})
	}

	header := []string{"distance_pct", "distance"}
	for _, lap := range laps {
		for _, ch := range channels {
			header = append(header, fmt.Sprintf("lap%d_%s", lap.lapNumber, ch.Name))
		}
	}

	rows := make([][]string, 0, len(grid))
	for i, pct := range grid {
		row := make([]string, 0, len(header))
		row = append(row, formatFloat(pct))
		// Approximate absolute distance: grid point x a nominal 1000 m
		// scale. True per-track lap length is not recorded.
		row = append(row, formatFloat(pct*1000))
		for _, lap := range laps {
			for _, ch := range channels {
				v := lap.data[ch.Name][i]
				if ch.Name == "gear" {
					row = append(row, strconv.Itoa(int(math.Round(v))))
					continue
				}
				row = append(row, formatFloat(v))
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// CopySessionRecord copies the persisted session JSON next to the CSV
// exports for convenience.
func (e *Exporter) CopySessionRecord(sess *session.Session, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", errors.Wrapf(err, "reading session record %s", srcPath)
	}
	name := e.filename(sess, "session")
	name = name[:len(name)-len(".csv")] + ".json"
	dst := filepath.Join(e.exportDir, name)
	if err := os.MkdirAll(e.exportDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating export directory %s", e.exportDir)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", dst)
	}
	return dst, nil
}

func (e *Exporter) writeFile(name string, write func(w *csv.Writer) error) (string, error) {
	if err := os.MkdirAll(e.exportDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating export directory %s", e.exportDir)
	}
	path := filepath.Join(e.exportDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrapf(err, "flushing %s", path)
	}
	return path, nil
}

func (e *Exporter) filename(sess *session.Session, label string) string {
	stamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s_%s.csv",
		storage.PathSegment(sess.Metadata.TrackName),
		storage.PathSegment(sess.Metadata.SessionType),
		label, stamp)
}

func writeLapRows(w *csv.Writer, lap session.Lap) error {
	display := strconv.Itoa(lap.LapNumber + 1)
	for _, s := range lap.Telemetry {
		if err := w.Write(sampleRow(display, s)); err != nil {
			return err
		}
	}
	return nil
}

func sampleRow(lapDisplay string, s telemetry.Sample) []string {
	return []string{
		lapDisplay,
		formatFloat(s.Time),
		formatFloat(s.LapDist),
		formatFloat(s.LapDistPct),
		formatFloat(s.Speed),
		formatFloat(s.Throttle),
		formatFloat(s.Brake),
		formatFloat(s.Steering),
		strconv.Itoa(s.Gear),
		formatFloat(s.RPM),
		formatFloat(s.LatAccel),
		formatFloat(s.LongAccel),
		formatFloat(s.YawRate),
		formatFloat(s.SteeringWheelAngle),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func lapRangeLabel(lapNumbers []int) string {
	if len(lapNumbers) == 1 {
		return strconv.Itoa(lapNumbers[0])
	}
	min, max := lapNumbers[0], lapNumbers[0]
	for _, n := range lapNumbers[1:] {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%d-%d", min, max)
}
