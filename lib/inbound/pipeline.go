// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/telecli/lib/access"
	"github.com/bureau-foundation/telecli/lib/account"
	"github.com/bureau-foundation/telecli/lib/clock"
	"github.com/bureau-foundation/telecli/lib/config"
	"github.com/bureau-foundation/telecli/lib/mention"
	"github.com/bureau-foundation/telecli/lib/outbound"
	"github.com/bureau-foundation/telecli/lib/pairing"
	"github.com/bureau-foundation/telecli/lib/peer"
	"github.com/bureau-foundation/telecli/lib/rpc"
	"github.com/bureau-foundation/telecli/lib/sessionstore"
	"github.com/bureau-foundation/telecli/lib/textcommand"
)

// PairingStore issues pairing codes and lists approved senders.
type PairingStore interface {
	ReadAllowFrom(ctx context.Context) ([]string, error)
	UpsertRequest(ctx context.Context, senderID, name string) (code string, created bool, err error)
}

// SessionRecorder persists per-session metadata.
type SessionRecorder interface {
	RecordInbound(ctx context.Context, update sessionstore.Update) error
}

// Deliverer sends messages back to Telegram.
type Deliverer interface {
	Send(ctx context.Context, acct account.Account, target, text string, options outbound.SendOptions) (outbound.Result, error)
	DeliverReply(ctx context.Context, acct account.Account, target string, payload outbound.Payload, replyTo *int64) ([]outbound.Result, error)
}

// ReplyFunc delivers one reply block to the conversation.
type ReplyFunc func(ctx context.Context, payload outbound.Payload) error

// DispatchRequest is one admitted message handed to the agent.
type DispatchRequest struct {
	Envelope Envelope

	// DisableBlockStreaming asks the dispatcher to buffer every reply
	// block into one delivery.
	DisableBlockStreaming bool
}

// Dispatcher runs the agent for one envelope. It calls reply for each
// reply block and returns once the agent is done.
type Dispatcher interface {
	Dispatch(ctx context.Context, request DispatchRequest, reply ReplyFunc) error
}

// Activity receives the pipeline's per-account signals. All methods
// must be safe to call from the pipeline's worker.
type Activity interface {
	RecordInbound(accountID string, at time.Time)
	RecordDrop(accountID, reason string)
	RecordFailure(accountID, stage string, err error)
	MarkInboundHandled(accountID string, at time.Time)
}

// Config holds the parameters for NewPipeline.
type Config struct {
	// AccountID is resolved against Source on every message.
	AccountID string

	// Source returns the live configuration. Called once per message.
	Source func() *config.Config

	Pairing    PairingStore
	Sessions   SessionRecorder
	Deliverer  Deliverer
	Dispatcher Dispatcher

	// Activity may be nil.
	Activity Activity

	Clock  clock.Clock
	Logger *slog.Logger
}

// Pipeline handles inbound messages for one account. It is not safe
// for concurrent use; callers serialize messages.
type Pipeline struct {
	accountID  string
	source     func() *config.Config
	pairing    PairingStore
	sessions   SessionRecorder
	deliverer  Deliverer
	dispatcher Dispatcher
	activity   Activity
	clock      clock.Clock
	logger     *slog.Logger
}

// NewPipeline returns a Pipeline. Source, Pairing, Sessions, Deliverer,
// and Dispatcher are required.
func NewPipeline(cfg Config) *Pipeline {
	pipeline := &Pipeline{
		accountID:  account.NormalizeAccountID(cfg.AccountID),
		source:     cfg.Source,
		pairing:    cfg.Pairing,
		sessions:   cfg.Sessions,
		deliverer:  cfg.Deliverer,
		dispatcher: cfg.Dispatcher,
		activity:   cfg.Activity,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if pipeline.clock == nil {
		pipeline.clock = clock.Real()
	}
	if pipeline.logger == nil {
		pipeline.logger = slog.New(slog.DiscardHandler)
	}
	if pipeline.activity == nil {
		pipeline.activity = noActivity{}
	}
	return pipeline
}

type noActivity struct{}

func (noActivity) RecordInbound(string, time.Time)      {}
func (noActivity) RecordDrop(string, string)            {}
func (noActivity) RecordFailure(string, string, error)  {}
func (noActivity) MarkInboundHandled(string, time.Time) {}

// Outcome is what the pipeline did with a message.
type Outcome int

const (
	// Skipped messages never reached policy: outbound, self-online,
	// empty, or without a peer.
	Skipped Outcome = iota
	Dropped
	PairingRequested
	Dispatched
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Dropped:
		return "dropped"
	case PairingRequested:
		return "pairing"
	case Dispatched:
		return "dispatched"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Result describes how one message was handled.
type Result struct {
	Outcome Outcome
	Reason  string

	// SessionKey is set for dispatched messages.
	SessionKey string
}

// Skip reasons.
const (
	reasonOutbound   = "outbound message"
	reasonSelfOnline = "self online"
	reasonEmptyBody  = "empty body"
	reasonNoPeer     = "missing peer id"
)

// HandlePacket handles every message carried by a queued packet: the
// payload of a new_message event, or the object or array of objects
// of a legacy packet. Other packets are ignored. A panic while
// handling one message is logged and recorded as a failure; the
// remaining messages are still handled.
func (p *Pipeline) HandlePacket(ctx context.Context, packet rpc.Packet) {
	switch packet.Kind {
	case rpc.PacketEvent:
		if packet.Event != rpc.EventNewMessage {
			p.logger.Debug("ignoring daemon event", "event", packet.Event)
			return
		}
		if message, ok := DecodeMessage(packet.Payload); ok {
			p.handleRecovered(ctx, message)
		}
	case rpc.PacketLegacy:
		payload := bytes.TrimSpace(packet.Payload)
		if len(payload) > 0 && payload[0] == '[' {
			var entries []json.RawMessage
			if err := json.Unmarshal(payload, &entries); err != nil {
				return
			}
			for _, entry := range entries {
				if message, ok := DecodeMessage(entry); ok {
					p.handleRecovered(ctx, message)
				}
			}
			return
		}
		if message, ok := DecodeMessage(payload); ok {
			p.handleRecovered(ctx, message)
		}
	}
}

func (p *Pipeline) handleRecovered(ctx context.Context, message Message) {
	defer func() {
		if value := recover(); value != nil {
			err := fmt.Errorf("panic: %v", value)
			p.logger.Error("telecli inbound handler panicked",
				"account_id", p.accountID,
				"message_id", message.ID,
				"panic", value,
				"stack", string(debug.Stack()),
			)
			p.activity.RecordFailure(p.accountID, "panic", err)
		}
	}()
	p.Handle(ctx, message)
}

// Handle runs one message through policy, routing, and dispatch.
func (p *Pipeline) Handle(ctx context.Context, message Message) Result {
	cfg := p.source()
	acct := cfg.Account(p.accountID)

	if message.Out {
		return Result{Outcome: Skipped, Reason: reasonOutbound}
	}
	if acct.DropWhenSelfOnline && message.SelfOnline {
		return Result{Outcome: Skipped, Reason: reasonSelfOnline}
	}
	rawBody := strings.TrimSpace(message.Text)
	if rawBody == "" {
		return Result{Outcome: Skipped, Reason: reasonEmptyBody}
	}
	peerID, ok := peer.Encode(message.PeerID)
	if !ok {
		return Result{Outcome: Skipped, Reason: reasonNoPeer}
	}

	direct := peer.IsDirect(message.PeerID)
	senderID := resolveSenderID(message, direct, peerID)
	userDialog := direct || peer.IsDirect(message.FromID) || peer.IsDirect(message.SenderID)

	storeAllowFrom, err := p.pairing.ReadAllowFrom(ctx)
	if err != nil {
		p.logger.Debug("reading pairing allow list failed", "error", err)
		storeAllowFrom = nil
	}
	allowFrom, groupAllowFrom := access.EffectiveAllowLists(acct.AllowFrom, acct.GroupAllowFrom, storeAllowFrom)

	allowTextCommands := cfg.Commands.AllowTextCommands()
	hasControlCommand := textcommand.New(cfg.Commands.Names).HasControlCommand(rawBody)

	decision := access.Evaluate(access.Input{
		Direct:            direct,
		UserDialog:        userDialog,
		PeerID:            peerID,
		SenderID:          senderID,
		DMPolicy:          acct.DMPolicy,
		GroupPolicy:       acct.EffectiveGroupPolicy(cfg.Channels.Defaults),
		AllowFrom:         allowFrom,
		GroupAllowFrom:    groupAllowFrom,
		IgnorePeerIDs:     access.NormalizeAllowList(acct.IgnorePeerIDs),
		UseAccessGroups:   cfg.Commands.AccessGroups(),
		AllowTextCommands: allowTextCommands,
		HasControlCommand: hasControlCommand,
	})
	switch decision.Outcome {
	case access.Drop:
		return p.drop(acct.ID, senderID, decision.Reason)
	case access.Pair:
		p.requestPairing(ctx, acct, peerID, senderID)
		return Result{Outcome: PairingRequested, Reason: decision.Reason}
	}

	route := ResolveRoute(cfg.Agent.ID, acct.ID, direct, routePeer(direct, senderID, peerID))
	sessionKey := route.SessionKey
	if direct && acct.SessionIsolate {
		sessionKey = IsolatedDirectSessionKey(route.AgentID, ChannelID, route.AccountID, senderID)
	}

	wasMentioned := p.matchesMention(cfg, route.AgentID, rawBody)
	if !direct {
		requireMention := cfg.RequireMention(peerID)
		if !access.CheckMention(direct, requireMention, wasMentioned, hasControlCommand, decision.CommandAuthorized) {
			return p.drop(acct.ID, senderID, access.ReasonMentionRequired)
		}
	}

	peers := BuildPeerContext(PeerContextInput{
		Peer:           message.PeerID,
		From:           message.FromID,
		Sender:         message.SenderID,
		Direct:         direct,
		SenderName:     message.SenderName,
		SenderUsername: message.SenderUsername,
		ChatTitle:      message.ChatTitle,
		ChatUsername:   message.ChatUsername,
	})
	now := p.clock.Now()
	timestamp := ParseTimestamp(message.Date, now)
	chatType := ChatGroup
	if direct {
		chatType = ChatDirect
	}

	envelope := Envelope{
		Body:               FormatBody(peers.ConversationLabel, peers.SenderLabel, timestamp, chatType, rawBody),
		BodyForAgent:       rawBody,
		RawBody:            rawBody,
		CommandBody:        rawBody,
		To:                 ChannelID + ":" + peerID,
		SessionKey:         sessionKey,
		AccountID:          route.AccountID,
		ChatType:           chatType,
		ConversationLabel:  peers.ConversationLabel,
		GroupSubject:       peers.GroupSubject,
		SenderID:           senderID,
		SenderName:         peers.SenderLabel,
		SenderUsername:     peers.SenderUsername,
		Provider:           ChannelID,
		Surface:            ChannelID,
		MessageSid:         message.ID,
		Timestamp:          timestamp.UnixMilli(),
		CommandAuthorized:  decision.CommandAuthorized,
		OriginatingChannel: ChannelID,
	}
	if direct {
		envelope.From = ChannelID + ":" + senderID
	} else {
		envelope.From = ChannelID + ":group:" + peerID
		envelope.WasMentioned = &wasMentioned
	}
	if envelope.MessageSid == "" {
		envelope.MessageSid = strconv.FormatInt(now.UnixMilli(), 10)
	}
	envelope.OriginatingTo = envelope.To
	envelope.applyPeers(peers)

	p.recordSession(ctx, envelope, route, direct, senderID, timestamp)
	p.activity.RecordInbound(acct.ID, timestamp)

	replyTo := message.NumericID()
	reply := func(ctx context.Context, payload outbound.Payload) error {
		if _, err := p.deliverer.DeliverReply(ctx, acct, peerID, payload, replyTo); err != nil {
			p.logger.Error("telecli reply failed", "session_key", sessionKey, "error", err)
			p.activity.RecordFailure(acct.ID, "deliver", err)
			return err
		}
		return nil
	}
	request := DispatchRequest{Envelope: envelope, DisableBlockStreaming: !acct.BlockStreaming}
	if err := p.dispatcher.Dispatch(ctx, request, reply); err != nil {
		p.logger.Error("telecli dispatch failed", "session_key", sessionKey, "error", err)
		p.activity.RecordFailure(acct.ID, "dispatch", err)
	}
	p.activity.MarkInboundHandled(acct.ID, p.clock.Now())

	return Result{Outcome: Dispatched, SessionKey: sessionKey}
}

// resolveSenderID prefers from_id, then sender_id, then the peer
// itself for direct conversations.
func resolveSenderID(message Message, direct bool, peerID string) string {
	if id, ok := peer.Encode(message.FromID); ok {
		return id
	}
	if id, ok := peer.Encode(message.SenderID); ok {
		return id
	}
	if direct {
		return peerID
	}
	return "unknown"
}

// routePeer is the id a route is resolved for: the sender in direct
// conversations, the group otherwise.
func routePeer(direct bool, senderID, peerID string) string {
	if direct {
		return senderID
	}
	return peerID
}

func (p *Pipeline) drop(accountID, senderID, reason string) Result {
	p.logger.Debug("telecli inbound dropped", "reason", reason, "target", senderID)
	p.activity.RecordDrop(accountID, reason)
	return Result{Outcome: Dropped, Reason: reason}
}

func (p *Pipeline) matchesMention(cfg *config.Config, agentID, text string) bool {
	matcher, err := mention.Compile(cfg.Mentions.Patterns, agentID)
	if err != nil {
		p.logger.Warn("invalid mention pattern", "error", err)
		return false
	}
	return matcher.Matches(text)
}

// requestPairing issues or continues a pairing request. The sender is
// told the code only when it is new. Failures are logged and never
// reach the sender.
func (p *Pipeline) requestPairing(ctx context.Context, acct account.Account, peerID, senderID string) {
	code, created, err := p.pairing.UpsertRequest(ctx, senderID, senderID)
	if err != nil {
		p.logger.Error("pairing request failed", "sender_id", senderID, "error", err)
		p.activity.RecordFailure(acct.ID, "pairing", err)
		return
	}
	if !created {
		p.logger.Debug("pairing request pending", "sender_id", senderID)
		return
	}
	reply := pairing.BuildPairingReply("Your Telegram user id: "+senderID, code)
	if _, err := p.deliverer.Send(ctx, acct, peerID, reply, outbound.SendOptions{}); err != nil {
		p.logger.Debug("pairing reply failed", "sender_id", senderID, "error", err)
		p.activity.RecordFailure(acct.ID, "pairing", err)
	}
}

// recordSession writes session metadata. Failures are logged and the
// message continues to dispatch.
func (p *Pipeline) recordSession(ctx context.Context, envelope Envelope, route Route, direct bool, senderID string, at time.Time) {
	update := sessionstore.Update{
		SessionKey:        envelope.SessionKey,
		AccountID:         route.AccountID,
		Channel:           ChannelID,
		ChatType:          envelope.ChatType,
		ConversationLabel: envelope.ConversationLabel,
		From:              envelope.From,
		To:                envelope.To,
		MessageSid:        envelope.MessageSid,
		At:                at,
	}
	if direct {
		update.LastRouteKey = route.MainSessionKey
		update.LastRoute = &sessionstore.Route{
			Channel:   ChannelID,
			To:        senderID,
			AccountID: route.AccountID,
		}
	}
	if err := p.sessions.RecordInbound(ctx, update); err != nil {
		p.logger.Error("failed updating session meta", "session_key", envelope.SessionKey, "error", err)
		p.activity.RecordFailure(route.AccountID, "session", err)
	}
}
