package queue

import (
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/roster"
)

// command is the interface for all messages handled by the queue loop.
type command interface {
	command() // marker method
}

type joinQueue struct {
	Player   roster.Player
	Response chan error
}

func (joinQueue) command() {}

type leaveQueue struct {
	PlayerID string
	Response chan error
}

func (leaveQueue) command() {}

type kickPlayer struct {
	AdminID  string
	PlayerID string
	Response chan error
}

func (kickPlayer) command() {}

type fillBots struct {
	AdminID  string
	Count    int
	Response chan fillResult
}

func (fillBots) command() {}

type fillResult struct {
	Added int
	Err   error
}

type lookupLobby struct {
	LobbyID  string
	Response chan *lobby.Lobby
}

func (lookupLobby) command() {}

type playerLobby struct {
	PlayerID string
	Response chan *lobby.Lobby
}

func (playerLobby) command() {}

type getView struct {
	Response chan View
}

func (getView) command() {}

// playerLeftLobby is sent by a lobby when one of its members leaves.
type playerLeftLobby struct {
	LobbyID  string
	PlayerID string
}

func (playerLeftLobby) command() {}

// lobbyClosed is sent by a lobby that reached a terminal phase.
type lobbyClosed struct {
	LobbyID string
	Requeue []lobby.Player
}

func (lobbyClosed) command() {}

type lobbyEvicted struct {
	LobbyID string
}

func (lobbyEvicted) command() {}
