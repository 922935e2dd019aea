package contacts

type Status string

const (
	StatusNew        Status = "new"
	StatusRead       Status = "read"
	StatusReplied    Status = "replied"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

var Statuses = []Status{StatusNew, StatusRead, StatusReplied, StatusInProgress, StatusCompleted, StatusArchived}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Display colors for status and priority badges.
var (
	StatusColors = map[Status]string{
		StatusNew:        "primary",
		StatusRead:       "info",
		StatusReplied:    "success",
		StatusInProgress: "warning",
		StatusCompleted:  "success",
		StatusArchived:   "default",
	}
	PriorityColors = map[Priority]string{
		PriorityLow:    "default",
		PriorityMedium: "info",
		PriorityHigh:   "warning",
		PriorityUrgent: "error",
	}
)

func (s Status) Color() string {
	if c, ok := StatusColors[s]; ok {
		return c
	}
	return "default"
}

func (p Priority) Color() string {
	if c, ok := PriorityColors[p]; ok {
		return c
	}
	return "default"
}

// Option is one entry of a filter or form select.
type Option struct {
	Value string
	Label string
}

var (
	StatusOptions = []Option{
		{"all", "All Statuses"},
		{"new", "New"},
		{"read", "Read"},
		{"replied", "Replied"},
		{"in-progress", "In Progress"},
		{"completed", "Completed"},
		{"archived", "Archived"},
	}
	PriorityOptions = []Option{
		{"all", "All Priorities"},
		{"low", "Low"},
		{"medium", "Medium"},
		{"high", "High"},
		{"urgent", "Urgent"},
	}
	ProjectTypeOptions = []Option{
		{"web-development", "Web Development"},
		{"mobile-app", "Mobile App"},
		{"e-commerce", "E-commerce"},
		{"consulting", "Consulting"},
		{"maintenance", "Maintenance"},
		{"other", "Other"},
	}
	BudgetOptions = []Option{
		{"under-5k", "Under $5,000"},
		{"5k-10k", "$5,000 - $10,000"},
		{"10k-25k", "$10,000 - $25,000"},
		{"25k-50k", "$25,000 - $50,000"},
		{"over-50k", "Over $50,000"},
		{"not-sure", "Not sure"},
	}
	TimelineOptions = []Option{
		{"asap", "ASAP"},
		{"1-month", "Within 1 month"},
		{"2-3-months", "2-3 months"},
		{"3-6-months", "3-6 months"},
		{"flexible", "Flexible"},
	}
)
