package bootstrap

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
)

type sampleSeeder struct {
	name string
	kind entity.Kind // adopted when it already holds rows
	rows func(r *runner) ([]entity.Entity, error)
}

var sampleSeeders = []sampleSeeder{
	{name: "libraryBooks", kind: entity.KindLibraryBook, rows: sampleBooks},
	{name: "activities", kind: entity.KindActivity, rows: sampleActivities},
	{name: "fees", kind: entity.KindFees, rows: sampleFees},
	{name: "announcements", kind: entity.KindAnnouncement, rows: sampleAnnouncements},
}

// seedSampleData runs the sample seeders concurrently. Their failures are isolated from each
// other and reported as warnings; the step is marked done once all of them have returned.
func (r *runner) seedSampleData(done bool) StepResult {
	if done {
		return skipped(StepSeedSampleData, "sample data already seeded")
	}

	details := make([]string, len(sampleSeeders))
	errs := make([]error, len(sampleSeeders))
	var g errgroup.Group
	for i, s := range sampleSeeders {
		g.Go(func() error {
			defer recoverInto(&errs[i])
			details[i], errs[i] = r.seedSamples(s)
			return nil
		})
	}
	_ = g.Wait()

	res := succeeded(StepSeedSampleData, "")
	var failures int
	for i, err := range errs {
		if err == nil {
			res.Detail += details[i] + "; "
			continue
		}
		failures++
		seedErr := &core.SeedingError{Step: StepSeedSampleData + "/" + sampleSeeders[i].name, Err: err}
		res.Warnings = append(res.Warnings, seedErr.Error())
	}
	if len(res.Detail) > 2 {
		res.Detail = res.Detail[:len(res.Detail)-2]
	}
	if failures > 0 {
		res.Outcome = Warning
		res.Message = fmt.Sprintf("%d of %d sample seeders failed", failures, len(sampleSeeders))
	}
	return r.markDone(state.SampleDataSeeded, res)
}

func (r *runner) seedSamples(s sampleSeeder) (string, error) {
	empty, err := r.isEmpty(s.kind)
	if err != nil {
		return "", err
	}
	if !empty {
		return "adopted existing " + s.name, nil
	}

	rows, err := s.rows(r)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		*row.GetBase() = r.newBase()
		if err := r.insert(row); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("inserted %d %s", len(rows), s.name), nil
}

func sampleBooks(*runner) ([]entity.Entity, error) {
	book := func(isbn, title, author, category, shelf string, year, copies int) *entity.LibraryBook {
		return &entity.LibraryBook{
			ISBN: isbn, Title: title, Author: author, Publisher: "East African Publishers",
			Category: category, PublishedYear: year,
			TotalCopies: copies, AvailableCopies: copies, ShelfLocation: shelf,
		}
	}
	return []entity.Entity{
		book("9780435905255", "Things Fall Apart", "Chinua Achebe", "Literature", "LIT-A1", 1958, 10),
		book("9780435909864", "The River Between", "Ngugi wa Thiong'o", "Literature", "LIT-A2", 1965, 8),
		book("9780141186238", "A Grain of Wheat", "Ngugi wa Thiong'o", "Literature", "LIT-A3", 1967, 5),
		book("", "Secondary Mathematics Form 1", "KLB", "Mathematics", "MAT-B1", 2017, 40),
		book("", "Kiswahili Fasaha Kidato cha Kwanza", "Oxford University Press", "Languages", "LAN-C1", 2016, 25),
	}, nil
}

func sampleActivities(r *runner) ([]entity.Entity, error) {
	day := r.now.Truncate(24 * time.Hour)
	activity := func(name, category, venue string, inDays, startHour, hours, capacity int) *entity.Activity {
		date := day.AddDate(0, 0, inDays)
		start := date.Add(time.Duration(startHour) * time.Hour)
		return &entity.Activity{
			Name: name, Category: category, Venue: venue,
			Description:          name + " for all forms",
			Date:                 date,
			StartTime:            start,
			EndTime:              start.Add(time.Duration(hours) * time.Hour),
			RegistrationDeadline: date.AddDate(0, 0, -3),
			Capacity:             capacity,
			Status:               entity.ActivityOpen,
		}
	}
	return []entity.Entity{
		activity("Inter-house Athletics", "sports", "Main Field", 14, 8, 8, 300),
		activity("Science Congress", "academic", "Laboratory Block", 21, 9, 6, 60),
		activity("Drama Festival Rehearsals", "arts", "School Hall", 10, 14, 3, 40),
	}, nil
}

// sampleFees bills the first student found for the three terms of the current year.
func sampleFees(r *runner) ([]entity.Entity, error) {
	students, err := r.remote.Query(r.ctx, entity.KindStudent, core.Query{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, errors.New("no student to bill")
	}
	studentID := students[0].String("id")
	if studentID == "" {
		return nil, errors.New("student row has no id")
	}

	year := r.now.Year()
	total := decimal.NewFromInt(18500)
	fees := func(term int, paid decimal.Decimal, due time.Time) *entity.Fees {
		return &entity.Fees{
			StudentID: studentID, AcademicYear: year, Term: term,
			TotalFees: total, PaidAmount: paid, DueDate: due,
			Description: fmt.Sprintf("Term %d tuition and boarding", term),
		}
	}
	return []entity.Entity{
		fees(1, total, time.Date(year, time.January, 15, 0, 0, 0, 0, time.UTC)),
		fees(2, decimal.NewFromInt(9000), time.Date(year, time.May, 10, 0, 0, 0, 0, time.UTC)),
		fees(3, decimal.Zero, time.Date(year, time.September, 5, 0, 0, 0, 0, time.UTC)),
	}, nil
}

func sampleAnnouncements(r *runner) ([]entity.Entity, error) {
	return []entity.Entity{
		&entity.Announcement{
			Title:     "Welcome to Masomo",
			Body:      "The school management system is ready. Sign in with your school account to get started.",
			Audience:  entity.AudienceAll,
			Priority:  entity.PriorityNormal,
			PublishAt: r.now,
			IsPinned:  true,
		},
		&entity.Announcement{
			Title:     "Fees deadline",
			Body:      "Parents are reminded to clear this term's fees balance before the end of the month.",
			Audience:  entity.AudienceParents,
			Priority:  entity.PriorityHigh,
			PublishAt: r.now,
			ExpiresAt: null.TimeFrom(r.now.AddDate(0, 1, 0)),
		},
		&entity.Announcement{
			Title:     "Staff meeting",
			Body:      "All teaching staff will meet in the staffroom on Monday at 4pm.",
			Audience:  entity.AudienceTeachers,
			Priority:  entity.PriorityLow,
			PublishAt: r.now,
			ExpiresAt: null.TimeFrom(r.now.AddDate(0, 0, 7)),
		},
	}, nil
}
