package server

import (
	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/game"
)

// Connection roles a client may declare in its hello.
const (
	RoleKiosk   = "kiosk"
	RoleDisplay = "display"
	RoleAdmin   = "admin"
)

// Inbound message types. The dispatch switch in the hub is exhaustive
// over this set; anything else is dropped.
const (
	MsgHello = "hello"

	MsgAdminSetDisplayFollow = "admin_set_display_follow"
	MsgAdminSetDefaults      = "admin_set_defaults"
	MsgAdminResetKiosk       = "admin_reset_kiosk"

	MsgKioskSetMode    = "kiosk_set_mode"
	MsgKioskStart      = "kiosk_start"
	MsgKioskToPlanning = "kiosk_to_planning"
	MsgKioskSetRules   = "kiosk_set_rules"
	MsgKioskToReady    = "kiosk_to_ready"
	MsgKioskDepart     = "kiosk_depart"
	MsgKioskShowCert   = "kiosk_show_cert"
	MsgKioskRetry      = "kiosk_retry"
	MsgKioskNext       = "kiosk_next"
	MsgKioskForceReset = "kiosk_force_reset"
)

// Outbound message types.
const (
	MsgHelloAck = "hello_ack"
	MsgSession  = "session"
	MsgSessions = "sessions"
)

// inboundMsg is the decoded superset of every client message; the type
// discriminator selects which fields are meaningful.
type inboundMsg struct {
	Type       string         `json:"type"`
	Role       string         `json:"role,omitempty"`
	KioskID    string         `json:"kioskId,omitempty"`
	CardID     string         `json:"cardId,omitempty"`
	Difficulty string         `json:"difficulty,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Rules      []game.Rule    `json:"rules,omitempty"`
	Follow     string         `json:"follow,omitempty"`
	Defaults   *game.Defaults `json:"defaults,omitempty"`
}

type helloAckMsg struct {
	Type          string             `json:"type"`
	AdminSettings game.AdminSettings `json:"adminSettings"`
}

type sessionMsg struct {
	Type          string             `json:"type"`
	Session       game.Snapshot      `json:"session"`
	AdminSettings game.AdminSettings `json:"adminSettings"`
}

type sessionsMsg struct {
	Type          string             `json:"type"`
	Sessions      []game.Snapshot    `json:"sessions"`
	AdminSettings game.AdminSettings `json:"adminSettings"`
}

// catalogResponse is the read-only catalog payload served over HTTP.
type catalogResponse struct {
	Cards      []catalog.Card      `json:"cards"`
	Conditions []catalog.Condition `json:"conditions"`
	Actions    []catalog.Action    `json:"actions"`
	Meta       catalog.Meta        `json:"meta"`
}
