package entity

// Kind names a persisted record kind. Its value is the remote table name.
type Kind string

const (
	KindUser                 Kind = "users"
	KindStudent              Kind = "students"
	KindTeacher              Kind = "teachers"
	KindStaff                Kind = "staff"
	KindFees                 Kind = "fees"
	KindFeesPayment          Kind = "fees_payments"
	KindAssignment           Kind = "assignments"
	KindAssignmentSubmission Kind = "assignment_submissions"
	KindMark                 Kind = "marks"
	KindGradingBand          Kind = "grading_scale"
	KindDisciplinaryIssue    Kind = "disciplinary_issues"
	KindLibraryBook          Kind = "library_books"
	KindBookIssue            Kind = "book_issues"
	KindActivity             Kind = "activities"
	KindActivityRegistration Kind = "activity_registrations"
	KindAchievement          Kind = "achievements"
	KindAnnouncement         Kind = "announcements"
	KindAttendance           Kind = "attendance"
	KindTimetableSlot        Kind = "timetable_slots"
	KindExam                 Kind = "exams"
	KindAppSetting           Kind = "app_settings"
	KindAuditLogEntry        Kind = "audit_logs"
)

var allKinds = []Kind{
	KindUser, KindStudent, KindTeacher, KindStaff,
	KindFees, KindFeesPayment,
	KindAssignment, KindAssignmentSubmission, KindMark, KindGradingBand, KindExam, KindTimetableSlot, KindAttendance,
	KindDisciplinaryIssue,
	KindLibraryBook, KindBookIssue,
	KindActivity, KindActivityRegistration, KindAchievement,
	KindAnnouncement, KindAppSetting, KindAuditLogEntry,
}

// AllKinds returns every known kind, in a stable order.
func AllKinds() []Kind {
	kinds := make([]Kind, len(allKinds))
	copy(kinds, allKinds)
	return kinds
}

func (k Kind) Table() string  { return string(k) }
func (k Kind) String() string { return string(k) }

func (k Kind) IsKnown() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}
