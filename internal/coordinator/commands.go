package coordinator

import (
	"encoding/json"
	"strings"

	"github.com/edvart/inhouse-queue/internal/errs"
)

// Command type names as they appear on the wire.
const (
	TypeJoinQueue   = "join-queue"
	TypeLeaveQueue  = "leave-queue"
	TypeMarkReady   = "mark-ready"
	TypeBanMap      = "ban-map"
	TypeLeaveLobby  = "leave-lobby"
	TypeReadyAll    = "ready-all"
	TypeForceCancel = "force-cancel"
	TypeFillBots    = "fill-bots"
	TypeKickPlayer  = "kick-player"
)

// Command is the interface for all client commands.
type Command interface {
	Type() string
	privileged() bool
}

// JoinQueue requests to add the caller to the queue.
type JoinQueue struct{}

func (JoinQueue) Type() string     { return TypeJoinQueue }
func (JoinQueue) privileged() bool { return false }

// LeaveQueue requests to remove the caller from the queue.
type LeaveQueue struct{}

func (LeaveQueue) Type() string     { return TypeLeaveQueue }
func (LeaveQueue) privileged() bool { return false }

// MarkReady confirms the caller for the ready check. An empty LobbyID means
// the caller's current lobby.
type MarkReady struct {
	LobbyID string `json:"lobbyId"`
}

func (MarkReady) Type() string     { return TypeMarkReady }
func (MarkReady) privileged() bool { return false }

// BanMap is sent by a team leader on their turn.
type BanMap struct {
	LobbyID string `json:"lobbyId"`
	Map     string `json:"map"`
}

func (BanMap) Type() string     { return TypeBanMap }
func (BanMap) privileged() bool { return false }

// LeaveLobby removes the caller from a lobby before it is finalized.
type LeaveLobby struct {
	LobbyID string `json:"lobbyId"`
}

func (LeaveLobby) Type() string     { return TypeLeaveLobby }
func (LeaveLobby) privileged() bool { return false }

// ReadyAll marks every player in the lobby as ready.
type ReadyAll struct {
	LobbyID string `json:"lobbyId"`
}

func (ReadyAll) Type() string     { return TypeReadyAll }
func (ReadyAll) privileged() bool { return true }

// ForceCancel cancels a lobby that has not completed.
type ForceCancel struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}

func (ForceCancel) Type() string     { return TypeForceCancel }
func (ForceCancel) privileged() bool { return true }

// FillBots adds bots to the queue. Count <= 0 fills the next lobby.
type FillBots struct {
	Count int `json:"count"`
}

func (FillBots) Type() string     { return TypeFillBots }
func (FillBots) privileged() bool { return true }

// KickPlayer removes a queued player.
type KickPlayer struct {
	PlayerID string `json:"playerId"`
}

func (KickPlayer) Type() string     { return TypeKickPlayer }
func (KickPlayer) privileged() bool { return true }

const maxCommandSize = 4096

// DecodeCommand parses and validates a JSON command frame of the form
// {"type": "...", ...}.
func DecodeCommand(data []byte) (Command, error) {
	if len(data) > maxCommandSize {
		return nil, errs.New(errs.CodeInvalidCommand, "command too large")
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errs.New(errs.CodeInvalidCommand, "malformed command")
	}

	var cmd Command
	var err error
	switch envelope.Type {
	case TypeJoinQueue:
		cmd = JoinQueue{}
	case TypeLeaveQueue:
		cmd = LeaveQueue{}
	case TypeMarkReady:
		cmd, err = decodeAs[MarkReady](data)
	case TypeBanMap:
		var c BanMap
		if c, err = decodeAs[BanMap](data); err == nil {
			c.Map = strings.TrimSpace(c.Map)
			if c.Map == "" {
				err = errs.New(errs.CodeInvalidCommand, "map is required")
			}
		}
		cmd = c
	case TypeLeaveLobby:
		cmd, err = decodeAs[LeaveLobby](data)
	case TypeReadyAll:
		var c ReadyAll
		if c, err = decodeAs[ReadyAll](data); err == nil && c.LobbyID == "" {
			err = errs.New(errs.CodeInvalidCommand, "lobbyId is required")
		}
		cmd = c
	case TypeForceCancel:
		var c ForceCancel
		if c, err = decodeAs[ForceCancel](data); err == nil && c.LobbyID == "" {
			err = errs.New(errs.CodeInvalidCommand, "lobbyId is required")
		}
		cmd = c
	case TypeFillBots:
		var c FillBots
		if c, err = decodeAs[FillBots](data); err == nil && c.Count > 100 {
			err = errs.New(errs.CodeInvalidCommand, "count must be at most 100")
		}
		cmd = c
	case TypeKickPlayer:
		var c KickPlayer
		if c, err = decodeAs[KickPlayer](data); err == nil && c.PlayerID == "" {
			err = errs.New(errs.CodeInvalidCommand, "playerId is required")
		}
		cmd = c
	case "":
		return nil, errs.New(errs.CodeInvalidCommand, "command type is required")
	default:
		return nil, errs.New(errs.CodeInvalidCommand, "unknown command type %q", envelope.Type)
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func decodeAs[T Command](data []byte) (T, error) {
	var c T
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errs.New(errs.CodeInvalidCommand, "malformed %s command", c.Type())
	}
	return c, nil
}
