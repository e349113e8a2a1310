package lobby

// msg is the interface for everything sent to a lobby's inbox.
type msg interface {
	lobbyMsg() // marker method
}

type markReady struct {
	PlayerID string
	Response chan error
}

func (markReady) lobbyMsg() {}

type readyAll struct {
	AdminID  string
	Response chan error
}

func (readyAll) lobbyMsg() {}

type banMap struct {
	PlayerID string
	Map      string
	Response chan error
}

func (banMap) lobbyMsg() {}

type leave struct {
	PlayerID string
	Response chan error
}

func (leave) lobbyMsg() {}

type forceCancel struct {
	AdminID  string
	Reason   string
	Response chan error
}

func (forceCancel) lobbyMsg() {}

type getSnapshot struct {
	Response chan Snapshot
}

func (getSnapshot) lobbyMsg() {}

// readyTimeout fires when the ready check deadline passes. Generation guards
// against timers from an earlier phase.
type readyTimeout struct {
	Generation int
}

func (readyTimeout) lobbyMsg() {}

// turnTimeout fires when a leader fails to ban in time. Seq and BanCount
// identify the turn the timer was armed for.
type turnTimeout struct {
	Seq      int
	BanCount int
}

func (turnTimeout) lobbyMsg() {}

type finalizeResult struct {
	MatchID string
	Err     error
}

func (finalizeResult) lobbyMsg() {}

type evict struct{}

func (evict) lobbyMsg() {}
