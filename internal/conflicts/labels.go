package conflicts

import "github.com/voyago/tripsync/internal/models"

// fieldLabels maps payload fields to display labels, per kind so that field
// names reused across kinds can carry different labels. Fields missing here
// still diff; they just display under their raw name.
var fieldLabels = map[models.Kind]map[string]string{
	models.KindPlan: {
		"title":       "Title",
		"destination": "Destination",
		"start_date":  "Start date",
		"end_date":    "End date",
	},
	models.KindSchedule: {
		"title":     "Title",
		"place":     "Place",
		"day":       "Day",
		"starts_at": "Starts",
		"ends_at":   "Ends",
		"note":      "Note",
	},
	models.KindMoment: {
		"caption":   "Caption",
		"media_key": "Photo",
		"taken_at":  "Taken at",
	},
	models.KindMemo: {
		"body": "Memo",
	},
	models.KindComment: {
		"body": "Comment",
	},
}

func label(kind models.Kind, field string) string {
	if l, ok := fieldLabels[kind][field]; ok {
		return l
	}
	return field
}
