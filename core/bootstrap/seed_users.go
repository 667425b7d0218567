package bootstrap

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
	"github.com/trezcool/masomodb/core/user"
)

// seedAccount is one login and the profile row that hangs off it.
type seedAccount struct {
	account user.NewAccount
	profile entity.Profile
}

// defaultRoster is the fixed set of accounts a fresh school starts with.
func defaultRoster(password string, now time.Time) []seedAccount {
	today := now.Truncate(24 * time.Hour)
	account := func(name, username string, roles ...string) user.NewAccount {
		return user.NewAccount{
			Name:     name,
			Username: username,
			Email:    username + "@masomo.local",
			Password: password,
			Roles:    roles,
		}
	}

	return []seedAccount{
		{
			account: account("School Owner", "owner", entity.RoleAdminOwner),
			profile: &entity.Staff{
				StaffNumber: "STF001", FirstName: "School", LastName: "Owner",
				Position: entity.PositionDirector, Department: "Management",
				Salary: decimal.Zero, HireDate: today,
			},
		},
		{
			account: account("School Principal", "principal", entity.RoleAdminPrincipal),
			profile: &entity.Staff{
				StaffNumber: "STF002", FirstName: "School", LastName: "Principal",
				Position: entity.PositionPrincipal, Department: "Administration",
				Salary: decimal.Zero, HireDate: today,
			},
		},
		{
			account: account("School Administrator", "admin", entity.RoleAdmin),
			profile: &entity.Staff{
				StaffNumber: "STF003", FirstName: "School", LastName: "Administrator",
				Position: entity.PositionAdministrator, Department: "Administration",
				Salary: decimal.Zero, HireDate: today,
			},
		},
		{
			account: account("Default Teacher", "teacher", entity.RoleTeacher),
			profile: &entity.Teacher{
				EmployeeNumber: "TCH001", FirstName: "Default", LastName: "Teacher",
				Subjects:      entity.StringList{"Mathematics", "Physics"},
				Qualification: "B.Ed. Science", HireDate: today,
				Status: entity.TeacherActive,
			},
		},
		{
			account: account("Default Student", "student", entity.RoleStudent),
			profile: &entity.Student{
				AdmissionNumber: "ADM0001", FirstName: "Default", LastName: "Student",
				Gender: "other", DateOfBirth: today.AddDate(-15, 0, 0),
				Form: 1, Stream: "East", GuardianName: "Default Guardian",
				AdmissionDate: today, Status: entity.StudentActive,
			},
		},
	}
}

// seedDefaultUsers creates the roster sequentially: every account is stored before its profile.
// The first failure abandons the step; rows already written are adopted by the next run.
func (r *runner) seedDefaultUsers(done bool) StepResult {
	if done {
		return skipped(StepSeedDefaultUsers, "default users already seeded")
	}
	seedErr := func(err error) StepResult {
		return warned(StepSeedDefaultUsers, &core.SeedingError{Step: StepSeedDefaultUsers, Err: err})
	}

	empty, err := r.isEmpty(entity.KindUser)
	if err != nil {
		return seedErr(err)
	}
	if !empty {
		return r.markDone(state.DefaultUsersSeeded, succeeded(StepSeedDefaultUsers, "adopted existing users"))
	}
	if r.opts.DefaultPassword == "" {
		return seedErr(errors.New("no default password configured"))
	}

	roster := defaultRoster(r.opts.DefaultPassword, r.now)
	for _, sa := range roster {
		usr, err := sa.account.Build(r.newBase())
		if err != nil {
			return seedErr(errors.Wrapf(err, "building account %s", sa.account.Username))
		}
		if err := r.insert(&usr); err != nil {
			return seedErr(errors.Wrapf(err, "account %s", usr.Username))
		}

		*sa.profile.GetBase() = r.newBase()
		sa.profile.SetUserID(usr.ID)
		if err := r.insert(sa.profile); err != nil {
			return seedErr(errors.Wrapf(err, "%s profile of %s", sa.profile.Kind(), usr.Username))
		}
	}
	return r.markDone(state.DefaultUsersSeeded, succeeded(StepSeedDefaultUsers, fmt.Sprintf("created %d accounts", len(roster))))
}
