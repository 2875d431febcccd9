package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"gopkg.in/yaml.v3"
)

// File is the on-disk universe definition
type File struct {
	Assets []domain.Asset `yaml:"assets"`
}

// LoadFile reads a YAML universe file. Tickers are upper-cased and must be unique.
func LoadFile(path string) ([]domain.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse universe file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Assets))
	for i := range file.Assets {
		a := &file.Assets[i]
		a.Ticker = strings.ToUpper(strings.TrimSpace(a.Ticker))
		if a.Ticker == "" {
			return nil, fmt.Errorf("universe file %s: asset %d has no ticker", path, i+1)
		}
		if seen[a.Ticker] {
			return nil, fmt.Errorf("universe file %s: duplicate ticker %s", path, a.Ticker)
		}
		seen[a.Ticker] = true
	}
	return file.Assets, nil
}

// ReadPricesCSV parses daily bars from a CSV with the header
// ticker,date,open,high,low,close,volume
func ReadPricesCSV(r io.Reader) ([]domain.PricePoint, error) {
	var prices []domain.PricePoint
	err := readCSV(r, []string{"ticker", "date", "open", "high", "low", "close", "volume"}, func(line int, rec []string) error {
		date, err := database.ParseDate(rec[1])
		if err != nil {
			return fmt.Errorf("line %d: invalid date %q", line, rec[1])
		}
		values, err := parseFloats(line, rec[2:])
		if err != nil {
			return err
		}
		prices = append(prices, domain.PricePoint{
			Ticker: strings.ToUpper(rec[0]),
			Date:   date,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
		return nil
	})
	return prices, err
}

// ReadMacroCSV parses macro observations from a CSV with the header indicator,date,value
func ReadMacroCSV(r io.Reader) ([]domain.MacroPoint, error) {
	var points []domain.MacroPoint
	err := readCSV(r, []string{"indicator", "date", "value"}, func(line int, rec []string) error {
		date, err := database.ParseDate(rec[1])
		if err != nil {
			return fmt.Errorf("line %d: invalid date %q", line, rec[1])
		}
		values, err := parseFloats(line, rec[2:])
		if err != nil {
			return err
		}
		points = append(points, domain.MacroPoint{
			Indicator: domain.MacroIndicator(strings.ToUpper(rec[0])),
			Date:      date,
			Value:     values[0],
		})
		return nil
	})
	return points, err
}

// ReadFundamentalsCSV parses fundamentals from a CSV with the header
// ticker,reference_date,pe,pb,dividend_yield,roe,net_margin,roic.
// Empty cells are unknown values.
func ReadFundamentalsCSV(r io.Reader) ([]domain.Fundamentals, error) {
	header := []string{"ticker", "reference_date", "pe", "pb", "dividend_yield", "roe", "net_margin", "roic"}
	var items []domain.Fundamentals
	err := readCSV(r, header, func(line int, rec []string) error {
		date, err := database.ParseDate(rec[1])
		if err != nil {
			return fmt.Errorf("line %d: invalid date %q", line, rec[1])
		}
		values := make([]*float64, 6)
		for i, cell := range rec[2:] {
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid %s %q", line, header[i+2], cell)
			}
			values[i] = domain.Float(v)
		}
		items = append(items, domain.Fundamentals{
			Ticker:        strings.ToUpper(rec[0]),
			ReferenceDate: date,
			PE:            values[0],
			PB:            values[1],
			DividendYield: values[2],
			ROE:           values[3],
			NetMargin:     values[4],
			ROIC:          values[5],
		})
		return nil
	})
	return items, err
}

func readCSV(r io.Reader, header []string, row func(line int, rec []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range header {
		if strings.ToLower(strings.TrimSpace(first[i])) != name {
			return fmt.Errorf("unexpected csv header %q, want %q", strings.Join(first, ","), strings.Join(header, ","))
		}
	}

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		if err := row(line, rec); err != nil {
			return err
		}
	}
}

func parseFloats(line int, cells []string) ([]float64, error) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid number %q", line, cell)
		}
		values[i] = v
	}
	return values, nil
}
