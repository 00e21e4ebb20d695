package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/flightrisk/internal/adapters/source/sqlite"
	"github.com/okian/flightrisk/internal/adapters/source/xlsx"
	"github.com/okian/flightrisk/internal/seed"
	"github.com/smartystreets/goconvey/convey"
)

func TestOutputFormat(t *testing.T) {
	convey.Convey("Given output paths", t, func() {
		convey.Convey("Then the format is inferred from the extension", func() {
			kind, err := outputFormat("people.XLSX", "")
			convey.So(err, convey.ShouldBeNil)
			convey.So(kind, convey.ShouldEqual, "xlsx")

			kind, err = outputFormat("hr.sqlite3", "")
			convey.So(err, convey.ShouldBeNil)
			convey.So(kind, convey.ShouldEqual, "sqlite")
		})

		convey.Convey("Then an explicit format wins", func() {
			kind, err := outputFormat("dump.bin", " SQLite ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(kind, convey.ShouldEqual, "sqlite")
		})

		convey.Convey("Then unknown outputs are rejected", func() {
			_, err := outputFormat("dump.csv", "")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestSplitUnits(t *testing.T) {
	convey.Convey("Given a unit list", t, func() {
		convey.So(splitUnits(" Sales, ,Ops,"), convey.ShouldResemble, []string{"Sales", "Ops"})
		convey.So(splitUnits(""), convey.ShouldBeEmpty)
	})
}

func TestWrite(t *testing.T) {
	convey.Convey("Given a generated dataset", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		data, err := seed.Generate(ctx, seed.WithPeople(5), seed.WithSeed(1), seed.WithNow(now))
		convey.So(err, convey.ShouldBeNil)
		dir := t.TempDir()

		convey.Convey("When written to SQLite", func() {
			path := filepath.Join(dir, "hr.db")
			convey.So(write(ctx, "sqlite", path, data), convey.ShouldBeNil)

			convey.Convey("Then the store should read it back", func() {
				store, err := sqlite.Open(path)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = store.Close() }()

				got, err := store.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.People, convey.ShouldHaveLength, 5)
				convey.So(got.Evaluations, convey.ShouldHaveLength, len(data.Evaluations))
				convey.So(got.Attendance, convey.ShouldHaveLength, len(data.Attendance))
			})
		})

		convey.Convey("When written to a workbook", func() {
			path := filepath.Join(dir, "hr.xlsx")
			convey.So(write(ctx, "xlsx", path, data), convey.ShouldBeNil)

			convey.Convey("Then the workbook should read it back", func() {
				got, err := xlsx.New(path).Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.People, convey.ShouldHaveLength, 5)
				convey.So(got.Evaluations, convey.ShouldHaveLength, len(data.Evaluations))
			})
		})
	})
}
