package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/flightrisk/internal/adapters/source"
	"github.com/okian/flightrisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	Convey("Given a database seeded with records", t, func() {
		s := openTemp(t)
		ctx := context.Background()
		hire := time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
		data := model.Dataset{
			People: []model.Person{
				{ID: "p1", Name: "Ada", HireDate: &hire, OrganizationUnit: "Engineering"},
				{ID: "p2", Name: "Bo"},
			},
			Evaluations: []model.EvaluationRecord{
				{ID: "e1", PersonID: "p1", EvaluatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), OverallScore: 7.5},
				{ID: "e2", PersonID: "p1", EvaluatedAt: time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC), OverallScore: 8},
			},
			Attendance: []model.AttendanceRecord{
				{ID: "a1", EmployeeID: "p1", Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Status: model.StatusLate},
			},
		}
		So(s.Insert(ctx, data), ShouldBeNil)

		Convey("When loading", func() {
			got, err := s.Load(ctx)

			Convey("Then every record comes back in insertion order", func() {
				So(err, ShouldBeNil)
				So(got.People, ShouldHaveLength, 2)
				So(got.People[0].Name, ShouldEqual, "Ada")
				So(got.People[0].HireDate.Equal(hire), ShouldBeTrue)
				So(got.People[0].OrganizationUnit, ShouldEqual, "Engineering")
				So(got.People[1].HireDate, ShouldBeNil)
				So(got.People[1].OrganizationUnit, ShouldEqual, "")

				So(got.Evaluations, ShouldHaveLength, 2)
				So(got.Evaluations[0].OverallScore, ShouldEqual, 7.5)
				So(got.Evaluations[1].EvaluatedAt.Equal(data.Evaluations[1].EvaluatedAt), ShouldBeTrue)

				So(got.Attendance, ShouldHaveLength, 1)
				So(got.Attendance[0].Status, ShouldEqual, model.StatusLate)
				So(got.Attendance[0].Date.Equal(data.Attendance[0].Date), ShouldBeTrue)
			})
		})

		Convey("When a duplicate id is inserted", func() {
			err := s.Insert(ctx, model.Dataset{People: []model.Person{{ID: "p1"}}})

			Convey("Then the transaction is rejected and nothing changes", func() {
				So(err, ShouldNotBeNil)
				got, loadErr := s.Load(ctx)
				So(loadErr, ShouldBeNil)
				So(got.People, ShouldHaveLength, 2)
			})
		})
	})
}

func TestStoreLoadErrors(t *testing.T) {
	Convey("Given a database with hand-written rows", t, func() {
		s := openTemp(t)
		ctx := context.Background()

		Convey("When dates use the plain date form", func() {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO people (id, name, hire_date, organization_unit) VALUES ('p1', 'Ada', '2020-05-01', 'Ops'), ('p2', 'Bo', '', '')`)
			So(err, ShouldBeNil)

			got, err := s.Load(ctx)

			Convey("Then they are accepted and blanks mean unknown", func() {
				So(err, ShouldBeNil)
				So(got.People[0].HireDate.Year(), ShouldEqual, 2020)
				So(got.People[1].HireDate, ShouldBeNil)
			})
		})

		Convey("When a timestamp cannot be parsed", func() {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO evaluations (id, person_id, evaluated_at, overall_score) VALUES ('e1', 'p1', 'last spring', 5)`)
			So(err, ShouldBeNil)

			_, err = s.Load(ctx)

			Convey("Then the load fails", func() {
				So(errors.Is(err, source.ErrLoad), ShouldBeTrue)
				So(errors.Is(err, source.ErrBadTimestamp), ShouldBeTrue)
			})
		})
	})

	Convey("Given a database without the record tables", t, func() {
		s, err := Open(filepath.Join(t.TempDir(), "empty.db"))
		So(err, ShouldBeNil)
		defer s.Close()

		_, err = s.Load(context.Background())

		Convey("Then the load fails", func() {
			So(errors.Is(err, source.ErrLoad), ShouldBeTrue)
		})
	})

	Convey("Given a driver that cannot open", t, func() {
		orig := openDB
		openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("boom") }
		defer func() { openDB = orig }()

		_, err := Open("ignored.db")

		Convey("Then Open reports it", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})
	})
}
