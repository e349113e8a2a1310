package queue

const TypeSizeChanged = "queue.size_changed"

// SizeChanged carries the full queue after every change.
type SizeChanged struct {
	QueueID   string  `json:"queueId"`
	Size      int     `json:"size"`
	LobbySize int     `json:"lobbySize"`
	Entries   []Entry `json:"entries"`
}

func (SizeChanged) EventType() string { return TypeSizeChanged }
