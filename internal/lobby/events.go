package lobby

import "github.com/edvart/inhouse-queue/internal/mapban"

const (
	TypeFormed        = "lobby.formed"
	TypeStateChanged  = "lobby.state_changed"
	TypeBanApplied    = "lobby.ban_applied"
	TypeDraftComplete = "lobby.draft_complete"
	TypeCancelled     = "lobby.cancelled"
)

type Formed struct {
	Lobby Snapshot `json:"lobby"`
}

func (Formed) EventType() string { return TypeFormed }

// StateChanged carries the full lobby state after every accepted change.
type StateChanged struct {
	Lobby Snapshot `json:"lobby"`
}

func (StateChanged) EventType() string { return TypeStateChanged }

type BanApplied struct {
	LobbyID    string      `json:"lobbyId"`
	Ban        mapban.Ban  `json:"ban"`
	Remaining  []string    `json:"remaining"`
	NextTeam   mapban.Team `json:"nextTeam,omitempty"`
	NextLeader string      `json:"nextLeader,omitempty"`
}

func (BanApplied) EventType() string { return TypeBanApplied }

type DraftComplete struct {
	LobbyID     string       `json:"lobbyId"`
	SelectedMap string       `json:"selectedMap"`
	Bans        []mapban.Ban `json:"bans"`
}

func (DraftComplete) EventType() string { return TypeDraftComplete }

type Cancelled struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}

func (Cancelled) EventType() string { return TypeCancelled }
