package portfolio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/blotter/internal/curve"
)

// dv01ColumnPrefix marks the per-tenor sensitivity columns in the
// positions CSV (e.g. "dv01_10Y").
const dv01ColumnPrefix = "dv01_"

// LoadPositions reads bond positions from a CSV file with columns
// cusip, notional, pv_sod and one dv01_<tenor> column per bucket.
//
// Loading degrades rather than fails: a missing file or unusable header
// yields an empty portfolio, and malformed rows are skipped. The core
// runs fine with zero positions (PnL is simply zero).
func LoadPositions(path string, log zerolog.Logger) []Position {
	log = log.With().Str("component", "position_loader").Logger()

	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Positions file not available, starting with empty portfolio")
		return nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, parsePosition validates per row
	records, err := reader.ReadAll()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse positions CSV, starting with empty portfolio")
		return nil
	}
	if len(records) < 1 {
		log.Warn().Str("path", path).Msg("Positions file is empty")
		return nil
	}

	header := records[0]
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"cusip", "notional", "pv_sod"} {
		if _, ok := columns[required]; !ok {
			log.Error().Str("path", path).Str("column", required).Msg("Positions CSV is missing a required column")
			return nil
		}
	}

	// Map dv01_<tenor> columns to tenors, skipping labels outside the
	// fixed tenor set.
	dv01Columns := make(map[curve.Tenor]int)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, dv01ColumnPrefix) {
			continue
		}
		tenor := curve.Tenor(strings.TrimPrefix(name, dv01ColumnPrefix))
		if _, err := curve.Years(tenor); err != nil {
			log.Warn().Str("column", name).Msg("Skipping DV01 column with unknown tenor")
			continue
		}
		dv01Columns[tenor] = i
	}
	if len(dv01Columns) == 0 {
		log.Warn().Str("path", path).Msg("No DV01 columns found in positions CSV")
	}

	positions := make([]Position, 0, len(records)-1)
	for rowNum, row := range records[1:] {
		pos, err := parsePosition(row, columns, dv01Columns)
		if err != nil {
			log.Warn().Err(err).Int("row", rowNum+2).Msg("Skipping malformed position row")
			continue
		}
		positions = append(positions, pos)
	}

	log.Info().
		Int("positions", len(positions)).
		Float64("total_notional", TotalNotional(positions)).
		Float64("total_pv_sod", TotalPVSOD(positions)).
		Str("path", path).
		Msg("Loaded positions")

	return positions
}

func parsePosition(row []string, columns map[string]int, dv01Columns map[curve.Tenor]int) (Position, error) {
	field := func(i int) (string, error) {
		if i >= len(row) {
			return "", fmt.Errorf("row has %d fields, need at least %d", len(row), i+1)
		}
		return strings.TrimSpace(row[i]), nil
	}

	cusip, err := field(columns["cusip"])
	if err != nil {
		return Position{}, err
	}
	if cusip == "" {
		return Position{}, fmt.Errorf("empty cusip")
	}

	notionalRaw, err := field(columns["notional"])
	if err != nil {
		return Position{}, err
	}
	notional, err := strconv.ParseFloat(notionalRaw, 64)
	if err != nil {
		return Position{}, fmt.Errorf("parsing notional: %w", err)
	}

	pvSODRaw, err := field(columns["pv_sod"])
	if err != nil {
		return Position{}, err
	}
	pvSOD, err := strconv.ParseFloat(pvSODRaw, 64)
	if err != nil {
		return Position{}, fmt.Errorf("parsing pv_sod: %w", err)
	}

	dv01 := make(map[curve.Tenor]float64, len(dv01Columns))
	for tenor, col := range dv01Columns {
		raw, err := field(col)
		if err != nil {
			return Position{}, err
		}
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Position{}, fmt.Errorf("parsing dv01_%s: %w", tenor, err)
		}
		dv01[tenor] = v
	}

	return Position{
		CUSIP:    cusip,
		Notional: notional,
		PVSOD:    pvSOD,
		DV01:     dv01,
		PVLive:   pvSOD,
	}, nil
}
