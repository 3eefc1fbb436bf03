package video

import "time"

// StageInterval is how long each progress stage is shown.
const StageInterval = 15 * time.Second

var stages = []string{
	"Initializing Veo model...",
	"Dreaming up scenes...",
	"Rendering frames...",
	"Polishing pixels...",
}

// StageAt returns the progress message for a job running for elapsed.
// The last stage holds until the job finishes.
func StageAt(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	i := int(elapsed / StageInterval)
	if i >= len(stages) {
		i = len(stages) - 1
	}
	return stages[i]
}

// FirstStage is shown as soon as a job starts.
func FirstStage() string {
	return stages[0]
}
