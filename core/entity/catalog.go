package entity

import (
	"encoding/json"
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
)

var (
	roleTag  = "role"
	roleText = "unknown role"

	settingKeyTag   = "settingkey"
	settingKeyText  = "only lowercase letters, digits, dots and underscores are allowed"
	settingKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)

	// cross-field tags reported by struct level validations
	crossFieldTexts = map[string]string{
		"paid_lte_total":     "paid amount cannot exceed total fees",
		"copies_lte_total":   "available, damaged and lost copies cannot exceed total copies",
		"after_start":        "must be after the start time",
		"before_date":        "must be before the activity date",
		"min_lte_max":        "minimum percentage cannot exceed maximum percentage",
		"score_lte_max":      "score cannot exceed the maximum score",
		"after_assigned":     "must be after the assigned date",
		"after_issued":       "must be after the issue date",
		"after_incident":     "must not be before the incident date",
		"required_resolved":  "required once the issue is resolved",
		"required_graded":    "required once the submission is graded",
		"required_late":      "required when the student arrived late",
		"excluded_absent":    "must be empty when the student is absent",
		"required_withdrawn": "required once the registration is withdrawn",
		"after_publish":      "must be after the publish date",
		"after_hire":         "must be after the hire date",
		"required_class":     "required for class teachers",
		"before_admission":   "must be before the admission date",
		"not_after_created":  "cannot be after the record creation date",
		"required_non_cash":  "required for non-cash payments",
		"value_type":         "does not match the value type",
		"known_kind":         "unknown entity kind",
	}
)

// ValidationResult is the outcome of Catalog.Validate.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Catalog validates entities against their field and cross-field constraints.
// It is safe for concurrent use.
type Catalog struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewCatalog() *Catalog {
	validate, translator := core.NewValidator()

	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(settingKeyTag, settingKeyValidation)
	core.RegisterCustomTranslation(validate, translator, settingKeyTag, settingKeyText)

	for tag, text := range crossFieldTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}

	validate.RegisterStructValidation(studentValidation, Student{})
	validate.RegisterStructValidation(teacherValidation, Teacher{})
	validate.RegisterStructValidation(staffValidation, Staff{})
	validate.RegisterStructValidation(feesValidation, Fees{})
	validate.RegisterStructValidation(feesPaymentValidation, FeesPayment{})
	validate.RegisterStructValidation(assignmentValidation, Assignment{})
	validate.RegisterStructValidation(submissionValidation, AssignmentSubmission{})
	validate.RegisterStructValidation(markValidation, Mark{})
	validate.RegisterStructValidation(gradingBandValidation, GradingBand{})
	validate.RegisterStructValidation(examValidation, Exam{})
	validate.RegisterStructValidation(timetableValidation, TimetableSlot{})
	validate.RegisterStructValidation(attendanceValidation, Attendance{})
	validate.RegisterStructValidation(disciplinaryValidation, DisciplinaryIssue{})
	validate.RegisterStructValidation(libraryBookValidation, LibraryBook{})
	validate.RegisterStructValidation(bookIssueValidation, BookIssue{})
	validate.RegisterStructValidation(activityValidation, Activity{})
	validate.RegisterStructValidation(registrationValidation, ActivityRegistration{})
	validate.RegisterStructValidation(achievementValidation, Achievement{})
	validate.RegisterStructValidation(announcementValidation, Announcement{})
	validate.RegisterStructValidation(appSettingValidation, AppSetting{})
	validate.RegisterStructValidation(auditLogValidation, AuditLogEntry{})

	return &Catalog{validate: validate, translator: translator}
}

// Validator exposes the underlying validator, eg. to validate input structs with the same tags.
func (c *Catalog) Validator() *validator.Validate { return c.validate }

func (c *Catalog) Translator() ut.Translator { return c.translator }

// Check returns a *core.ValidationError listing every violated constraint, or nil.
func (c *Catalog) Check(e Entity) error {
	if e == nil {
		return core.NewValidationError(errors.New("nil entity"))
	}
	if err := c.validate.Struct(e); err != nil {
		flds, err := core.TranslateErrors(err, c.translator)
		if err != nil {
			return errors.Wrapf(err, "validating %s", e.Kind())
		}
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (c *Catalog) Validate(e Entity) ValidationResult {
	err := c.Check(e)
	if err == nil {
		return ValidationResult{Valid: true}
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		msgs := make([]string, 0, len(vErr.Fields))
		for _, fe := range vErr.Fields {
			msgs = append(msgs, fe.Field+": "+fe.Error)
		}
		return ValidationResult{Errors: msgs}
	}
	return ValidationResult{Errors: []string{err.Error()}}
}

func roleValidation(fl validator.FieldLevel) bool {
	return IsKnownRole(fl.Field().String())
}

func settingKeyValidation(fl validator.FieldLevel) bool {
	return settingKeyRegex.MatchString(fl.Field().String())
}

// Struct Level Validations

func studentValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(Student)
	if !s.DateOfBirth.IsZero() && !s.AdmissionDate.IsZero() && !s.DateOfBirth.Before(s.AdmissionDate) {
		sl.ReportError(s.DateOfBirth, "date_of_birth", "DateOfBirth", "before_admission", "")
	}
}

func teacherValidation(sl validator.StructLevel) {
	t := sl.Current().Interface().(Teacher)
	if t.IsClassTeacher && !t.ClassForm.Valid {
		sl.ReportError(t.ClassForm, "class_form", "ClassForm", "required_class", "")
	}
}

func staffValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(Staff)
	if s.ContractEnd.Valid && !s.ContractEnd.Time.After(s.HireDate) {
		sl.ReportError(s.ContractEnd, "contract_end", "ContractEnd", "after_hire", "")
	}
}

func feesValidation(sl validator.StructLevel) {
	f := sl.Current().Interface().(Fees)
	if f.PaidAmount.GreaterThan(f.TotalFees) {
		sl.ReportError(f.PaidAmount, "paid_amount", "PaidAmount", "paid_lte_total", "")
	}
}

func feesPaymentValidation(sl validator.StructLevel) {
	p := sl.Current().Interface().(FeesPayment)
	if p.Method != PaymentCash && p.Reference == "" {
		sl.ReportError(p.Reference, "reference", "Reference", "required_non_cash", "")
	}
}

func assignmentValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Assignment)
	if !a.DueDate.After(a.AssignedDate) {
		sl.ReportError(a.DueDate, "due_date", "DueDate", "after_assigned", "")
	}
}

func submissionValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(AssignmentSubmission)
	if s.Status == SubmissionGraded && !s.Score.Valid {
		sl.ReportError(s.Score, "score", "Score", "required_graded", "")
	}
}

func markValidation(sl validator.StructLevel) {
	m := sl.Current().Interface().(Mark)
	if m.Score.GreaterThan(m.MaxScore) {
		sl.ReportError(m.Score, "score", "Score", "score_lte_max", "")
	}
}

func gradingBandValidation(sl validator.StructLevel) {
	g := sl.Current().Interface().(GradingBand)
	if g.MinPercentage > g.MaxPercentage {
		sl.ReportError(g.MinPercentage, "min_percentage", "MinPercentage", "min_lte_max", "")
	}
}

func examValidation(sl validator.StructLevel) {
	e := sl.Current().Interface().(Exam)
	if e.EndDate.Before(e.StartDate) {
		sl.ReportError(e.EndDate, "end_date", "EndDate", "after_start", "")
	}
}

func timetableValidation(sl validator.StructLevel) {
	t := sl.Current().Interface().(TimetableSlot)
	if t.EndMinute <= t.StartMinute {
		sl.ReportError(t.EndMinute, "end_minute", "EndMinute", "after_start", "")
	}
}

func attendanceValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Attendance)
	switch {
	case a.Status == AttendanceLate && !a.ArrivalTime.Valid:
		sl.ReportError(a.ArrivalTime, "arrival_time", "ArrivalTime", "required_late", "")
	case a.Status == AttendanceAbsent && a.ArrivalTime.Valid:
		sl.ReportError(a.ArrivalTime, "arrival_time", "ArrivalTime", "excluded_absent", "")
	}
}

func disciplinaryValidation(sl validator.StructLevel) {
	d := sl.Current().Interface().(DisciplinaryIssue)
	if d.Status == IssueResolved && !d.ResolvedAt.Valid {
		sl.ReportError(d.ResolvedAt, "resolved_at", "ResolvedAt", "required_resolved", "")
		return
	}
	if d.ResolvedAt.Valid && d.ResolvedAt.Time.Before(d.IncidentDate) {
		sl.ReportError(d.ResolvedAt, "resolved_at", "ResolvedAt", "after_incident", "")
	}
}

func libraryBookValidation(sl validator.StructLevel) {
	b := sl.Current().Interface().(LibraryBook)
	if b.AvailableCopies+b.DamagedCopies+b.LostCopies > b.TotalCopies {
		sl.ReportError(b.AvailableCopies, "available_copies", "AvailableCopies", "copies_lte_total", "")
	}
}

func bookIssueValidation(sl validator.StructLevel) {
	i := sl.Current().Interface().(BookIssue)
	if !i.DueDate.After(i.IssuedAt) {
		sl.ReportError(i.DueDate, "due_date", "DueDate", "after_issued", "")
	}
	if i.ReturnedAt.Valid && i.ReturnedAt.Time.Before(i.IssuedAt) {
		sl.ReportError(i.ReturnedAt, "returned_at", "ReturnedAt", "after_issued", "")
	}
}

func activityValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Activity)
	if !a.EndTime.After(a.StartTime) {
		sl.ReportError(a.EndTime, "end_time", "EndTime", "after_start", "")
	}
	if !a.RegistrationDeadline.Before(a.Date) {
		sl.ReportError(a.RegistrationDeadline, "registration_deadline", "RegistrationDeadline", "before_date", "")
	}
}

func registrationValidation(sl validator.StructLevel) {
	r := sl.Current().Interface().(ActivityRegistration)
	if r.Status == RegistrationWithdrawn && !r.WithdrawnAt.Valid {
		sl.ReportError(r.WithdrawnAt, "withdrawn_at", "WithdrawnAt", "required_withdrawn", "")
	}
}

func achievementValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Achievement)
	if !a.CreatedAt.IsZero() && a.AwardedOn.After(a.CreatedAt) {
		sl.ReportError(a.AwardedOn, "awarded_on", "AwardedOn", "not_after_created", "")
	}
}

func announcementValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Announcement)
	if a.ExpiresAt.Valid && !a.ExpiresAt.Time.After(a.PublishAt) {
		sl.ReportError(a.ExpiresAt, "expires_at", "ExpiresAt", "after_publish", "")
	}
}

func appSettingValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(AppSetting)
	var err error
	switch s.ValueType {
	case SettingInt:
		_, err = strconv.Atoi(s.Value)
	case SettingBool:
		_, err = strconv.ParseBool(s.Value)
	case SettingJSON:
		if !json.Valid([]byte(s.Value)) {
			err = errors.New("invalid json")
		}
	}
	if err != nil {
		sl.ReportError(s.Value, "value", "Value", "value_type", "")
	}
}

func auditLogValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(AuditLogEntry)
	if a.EntityKind != "" && !Kind(a.EntityKind).IsKnown() {
		sl.ReportError(a.EntityKind, "entity_kind", "EntityKind", "known_kind", "")
	}
}
