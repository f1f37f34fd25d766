package database

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// User represents a Telegram user known to the bot. The id is the Telegram
// user id; Authkey is the Redmine API key, empty until the user registers.
type User struct {
	ID      int64  `db:"id"`
	Authkey string `db:"authkey"`
}

// Issue is a local mirror of a Redmine issue. Rows are created the first time
// a time entry references the issue and are not refreshed afterwards.
type Issue struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// TimeEntry is a local mirror of a Redmine time entry. The id is assigned by
// Redmine; an entry is never stored locally before Redmine has accepted it.
type TimeEntry struct {
	ID       int64   `db:"id"`
	UserID   int64   `db:"user_id"`
	IssueID  int64   `db:"issue_id"`
	SpentOn  string  `db:"spent_on"`
	Hours    float64 `db:"hours"`
	Comments string  `db:"comments"`
}
