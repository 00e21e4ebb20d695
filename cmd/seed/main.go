// Command seed writes a synthetic HR dataset to a SQLite database or an
// Excel workbook usable as a flightrisk record source.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/flightrisk/internal/adapters/source/sqlite"
	"github.com/okian/flightrisk/internal/adapters/source/xlsx"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/seed"
	"github.com/okian/flightrisk/pkg/logger"
)

const (
	defaultPeople  = 200
	defaultTimeout = 2 * time.Minute
)

func main() {
	var (
		out     = flag.String("out", "flightrisk.db", "Output file (.db/.sqlite for SQLite, .xlsx for a workbook)")
		format  = flag.String("format", "", "Output format: sqlite or xlsx (default: from the file extension)")
		people  = flag.Int("people", defaultPeople, "Number of people to generate")
		seedVal = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		units   = flag.String("units", strings.Join(seed.DefaultUnits, ","), "Comma separated organizational units")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	kind, err := outputFormat(*out, *format)
	if err != nil {
		logger.Get().Error(ctx, "invalid output", logger.Error(err))
		os.Exit(2)
	}

	data, err := seed.Generate(ctx,
		seed.WithPeople(*people),
		seed.WithSeed(*seedVal),
		seed.WithUnits(splitUnits(*units)...),
	)
	if err != nil {
		logger.Get().Error(ctx, "generate dataset", logger.Error(err))
		os.Exit(1)
	}

	if err := write(ctx, kind, *out, data); err != nil {
		logger.Get().Error(ctx, "write dataset", logger.String("out", *out), logger.Error(err))
		os.Exit(1)
	}

	logger.Get().Info(ctx, "dataset written",
		logger.String("out", *out),
		logger.String("format", kind),
		logger.Int("people", len(data.People)),
		logger.Int("evaluations", len(data.Evaluations)),
		logger.Int("attendance", len(data.Attendance)),
	)
}

// outputFormat resolves the explicit format or infers it from path.
func outputFormat(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			format = "xlsx"
		case ".db", ".sqlite", ".sqlite3":
			format = "sqlite"
		}
	}
	switch format {
	case "sqlite", "xlsx":
		return format, nil
	default:
		return "", fmt.Errorf("cannot determine output format for %q", path)
	}
}

func splitUnits(s string) []string {
	var units []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}

func write(ctx context.Context, kind, path string, data model.Dataset) error {
	if kind == "xlsx" {
		return xlsx.Write(path, data)
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return store.Insert(ctx, data)
}
