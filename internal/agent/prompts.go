// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent

import (
	"fmt"
	"strings"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/internal/store"
)

const attackerSystemPrompt = `You play a scammer in a closed research simulation that trains scam-detection systems. Nothing you write reaches a real person.

Write the next message of your side of a text conversation. Pick one scam pattern (parcel delivery fee, bank security alert, tech support, prize claim, romance, crypto investment, government fine) and stay consistent with it across turns. Escalate urgency and pressure when the other side hesitates.

Hard rules:
- Use only synthetic placeholders: links under https://example.invalid/, payment references like TOKEN_SIM_<digits>, invented names.
- Never write anything shaped like a real card number, bank account, social security number or credential.
- Reply with the message text only: no quotes, no stage directions, at most three sentences.`

const attackerKickoff = "Begin the simulated conversation with your opening message."

const defenderSystemPrompt = `You are the defender in a closed scam-detection research simulation. You receive a synthetic conversation and the attacker's latest message.

Assess the latest message and reply with one JSON object of this shape:
{
  "telemetry": [
    {"event_type": "detection", "data": {"scam_category": string, "fake_link_indicator": bool, "confidence": number}},
    {"event_type": "behavioral_indicators", "data": {"urgency_level": "low"|"moderate"|"high"|"critical", "persuasion_style": string, "impersonation_type": string, "fake_link_indicator": bool, "synthetic_payment_token": string}}
  ],
  "risk_increase": number between 0 and 40, how much more dangerous the conversation became with this message,
  "defensive_response": string, a short, cautious reply that never shares personal data and stalls or refuses
}

Include a "privacy_violation" event with {"rule": string} only if the attacker message contains what looks like real personal data.`

// attackerMessages maps the timeline onto the attacker's point of view:
// its own lines are assistant turns, the defender's are user turns. The
// conversation always opens with a user turn since providers require one.
func attackerMessages(history []store.Message) []provider.Message {
	msgs := []provider.Message{{Role: provider.MessageRoleUser, Content: attackerKickoff}}
	for _, m := range history {
		switch m.Sender {
		case store.SenderAttacker:
			msgs = append(msgs, provider.Message{Role: provider.MessageRoleAssistant, Content: m.Content})
		case store.SenderDefender:
			msgs = append(msgs, provider.Message{Role: provider.MessageRoleUser, Content: m.Content})
		}
	}
	return msgs
}

// defenderPrompt renders the transcript and latest attacker line as a
// single user message.
func defenderPrompt(history []store.Message, latest string) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	if len(history) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, m := range history {
		if m.Sender == store.SenderSystem {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Sender, m.Content)
	}
	b.WriteString("\nLatest attacker message:\n")
	b.WriteString(latest)
	return b.String()
}

// cleanAttackerText strips whitespace and wrapping quotes models sometimes add.
func cleanAttackerText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
