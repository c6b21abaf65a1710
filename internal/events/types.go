package events

// Event types published by the kernel.
const (
	TaskSubmitted = "task_submitted"
	TaskComplete  = "task_complete"
	TaskFailed    = "task_failed"
	ArenaReset    = "arena_reset"
)

// ArenaResetPayload is published with ArenaReset.
type ArenaResetPayload struct {
	Index   int    `json:"index"`
	Arena   string `json:"arena"`
	Cleared int    `json:"cleared"`
}
