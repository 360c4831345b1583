package rating

import (
	"context"
	"strings"
)

// Column names of the descriptions and ratings tables.
const (
	ColModel       = "model"
	ColDescription = "description"
	ColVideoPath   = "video_path"
	ColQuality     = "quality"
	ColName        = "name"
)

// RatedColumns is the column order of every row written to the ratings table.
var RatedColumns = []string{ColModel, ColDescription, ColVideoPath, ColQuality, ColName}

// DescriptionRow is one candidate description of a video, as read from the source table.
type DescriptionRow struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	VideoPath   string `json:"video_path"`
}

// TaskRow is a description row being rated in the current task.
type TaskRow struct {
	DescriptionRow
	Quality string `json:"quality"`
}

// Task holds all descriptions of one sampled video.
type Task struct {
	// Serial is unique per sampled task within the process, so the same video
	// sampled twice still yields two distinct tasks.
	Serial    uint64    `json:"serial"`
	VideoID   string    `json:"video_id"`
	VideoPath string    `json:"video_path"`
	Rows      []TaskRow `json:"rows"`
}

// RatedRow is the unit appended to the ratings table.
type RatedRow struct {
	DescriptionRow
	Quality   string
	RaterName string
}

// Values returns the row in RatedColumns order.
func (r RatedRow) Values() []string {
	return []string{r.Model, r.Description, r.VideoPath, r.Quality, r.RaterName}
}

// Source is the read-only table of candidate descriptions.
type Source interface {
	Records(ctx context.Context) ([]DescriptionRow, error)
}

// Sink is the append-only ratings table. AppendRows writes all rows of one
// submitted task or none of them.
type Sink interface {
	AppendRows(ctx context.Context, rows []RatedRow) error
}

// Reviewed is implemented by sinks that can tell which videos a rater has already rated.
type Reviewed interface {
	RatedPaths(ctx context.Context, rater string) (map[string]bool, error)
}

// VideoID derives the video identifier from its path: the last path segment
// up to its first dot ("folder/sub/123.mp4" -> "123").
func VideoID(videoPath string) string {
	base := videoPath
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return base
}

// VideoURL fills the {vid} placeholder of format with the video id.
func VideoURL(format, videoID string) string {
	return strings.ReplaceAll(format, "{vid}", videoID)
}
