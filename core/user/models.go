package user

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
)

var (
	// HashCost is the bcrypt cost used for new accounts. Tests lower it to bcrypt.MinCost.
	HashCost = bcrypt.DefaultCost

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		entity.RoleAdminOwner:     30,
		entity.RoleAdminPrincipal: 29,
		entity.RoleAdmin:          21,

		// Teachers: 20 - 11
		entity.RoleTeacher: 11,

		// Students: 10 - 1
		entity.RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: entity.RoleStudent},
		{Name: "Teacher", Value: entity.RoleTeacher},
		{Name: "Admin", Value: entity.RoleAdmin},
		{Name: "Admin Principal", Value: entity.RoleAdminPrincipal},
		{Name: "Admin Owner", Value: entity.RoleAdminOwner},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

func RoleStartsWith(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func IsAdmin(roles []string) bool   { return RoleStartsWith(roles, entity.RoleAdmin) }
func IsTeacher(roles []string) bool { return RoleStartsWith(roles, entity.RoleTeacher) }
func IsStudent(roles []string) bool { return RoleStartsWith(roles, entity.RoleStudent) }

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewAccount contains information needed to create a new login account.
type NewAccount struct {
	Name     string   `json:"name" validate:"required,notblank"`
	Username string   `json:"username" validate:"required,min=4,alphanum_"`
	Email    string   `json:"email" validate:"required,email"`
	Phone    string   `json:"phone" validate:"omitempty,phone"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"required,min=1,allroles"`
}

func (na *NewAccount) clean() {
	na.Name = core.CleanString(na.Name)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
}

// Validate cleans the account fields and applies the password policy.
func (na *NewAccount) Validate() error {
	na.clean()
	validate, translator := accountValidator()
	if err := validate.Struct(na); err != nil {
		flds, err := core.TranslateErrors(err, translator)
		if err != nil {
			return errors.Wrap(err, "validating account")
		}
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// Build validates the account and turns it into a User row with a hashed password.
// The row itself is not validated; callers run it through the entity catalog before storing it.
func (na NewAccount) Build(base entity.Base) (entity.User, error) {
	if err := na.Validate(); err != nil {
		return entity.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(na.Password), HashCost)
	if err != nil {
		return entity.User{}, errors.Wrap(err, "hashing password")
	}

	usr := entity.User{
		Base:         base,
		Name:         na.Name,
		Username:     na.Username,
		Email:        na.Email,
		Roles:        entity.StringList(na.Roles),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if na.Phone != "" {
		phone, err := core.FormatPhone(na.Phone)
		if err != nil {
			return entity.User{}, errors.Wrap(err, "formatting phone")
		}
		usr.Phone = null.StringFrom(phone)
	}
	return usr, nil
}

func CheckPassword(usr entity.User, pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(pwd))
}

var ErrInvalidCredentials = errors.New("invalid credentials")

// FromRow decodes the account columns of a users row read from the remote store.
func FromRow(row core.Row) (entity.User, error) {
	usr := entity.User{
		Name:         row.String("name"),
		Username:     row.String("username"),
		Email:        row.String("email"),
		PasswordHash: row.String("password_hash"),
	}
	usr.ID = row.String("id")
	if err := usr.Roles.Scan(row["roles"]); err != nil {
		return entity.User{}, errors.Wrap(err, "reading roles")
	}
	switch v := row["is_active"].(type) {
	case bool:
		usr.IsActive = v
	case int64:
		usr.IsActive = v != 0
	case []byte:
		usr.IsActive = string(v) == "1" || string(v) == "true" || string(v) == "t"
	}
	return usr, nil
}

// Authenticate checks that usr may log in with pwd.
func Authenticate(usr entity.User, pwd string) error {
	if !usr.IsActive || usr.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := CheckPassword(usr, pwd); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
