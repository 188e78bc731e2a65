package schedule

// DefaultCandidateTasks is the task sheet offered when a day is opened for
// drafting and no custom list is configured. The set mirrors a typical
// apiary season: routine checks, feeding, harvest and wintering work.
var DefaultCandidateTasks = []string{
	"Hive Inspection",
	"Queen Check",
	"Harvest Honey",
	"Varroa Mite Treatment",
	"Pollen Patty Feeding",
	"Hive Cleaning",
	"Winter Preparation",
}

// CandidateTasksOrDefault returns configured tasks, falling back to the
// built-in sheet when the list is empty.
func CandidateTasksOrDefault(tasks []string) []string {
	cleaned := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return append([]string(nil), DefaultCandidateTasks...)
	}
	return cleaned
}
