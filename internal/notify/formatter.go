package notify

import (
	"fmt"
	"strconv"
	"time"

	"cipher-rooms/internal/ledger"
)

const (
	colorInfo     = 0x5865F2
	colorAction   = 0x3BA55D
	colorWin      = 0x57F287
	colorCritical = 0xED4245
	colorTreasury = 0xFEE75C

	defaultFooter = "cipher-rooms"
)

// FormatMessage renders the public part of an event. Encrypted payloads
// never reach a webhook.
func FormatMessage(ev ledger.Event) (Message, bool) {
	room := "#" + strconv.FormatUint(ev.SessionID, 10)
	msg := Message{Timestamp: eventTimestamp(ev.At), Footer: defaultFooter}
	var fields []MessageField

	switch ev.Type {
	case ledger.EventSessionCreated:
		if ev.Created == nil {
			return Message{}, false
		}
		c := ev.Created
		msg.Title = "Room Created · " + room
		msg.Content = fmt.Sprintf("%s opened %q", fallback(ev.Principal, "-"), c.Name)
		msg.Description = fmt.Sprintf("%s room for %d, stake %d", fallback(c.Category, "general"), c.Capacity, c.Stake)
		msg.Color = colorInfo
		fields = append(fields,
			MessageField{Name: "Creator", Value: fallback(ev.Principal, "-"), Inline: true},
			MessageField{Name: "Capacity", Value: strconv.Itoa(c.Capacity), Inline: true},
			MessageField{Name: "Stake", Value: strconv.FormatInt(c.Stake, 10), Inline: true},
			MessageField{Name: "Difficulty", Value: fallback(c.Difficulty, "-"), Inline: true},
		)
	case ledger.EventPlayerJoined:
		if ev.Joined == nil {
			return Message{}, false
		}
		msg.Title = "Player Joined · " + room
		msg.Content = fmt.Sprintf("%s joined", ev.Principal)
		msg.Description = fmt.Sprintf("%s joined with %d", ev.Principal, ev.Joined.Payment)
		msg.Color = colorAction
		fields = append(fields,
			MessageField{Name: "Player", Value: ev.Principal, Inline: true},
			MessageField{Name: "Occupancy", Value: strconv.Itoa(ev.Joined.Occupancy), Inline: true},
		)
	case ledger.EventSessionStarted:
		if ev.Started == nil {
			return Message{}, false
		}
		msg.Title = "Room Started · " + room
		msg.Content = "room is full"
		msg.Description = fmt.Sprintf("%d players locked in.", ev.Started.Occupancy)
		msg.Color = colorInfo
		fields = append(fields, MessageField{Name: "Occupancy", Value: strconv.Itoa(ev.Started.Occupancy), Inline: true})
	case ledger.EventMoveSubmitted:
		msg.Title = "Move Submitted · " + room
		msg.Content = fmt.Sprintf("%s submitted a sealed move", ev.Principal)
		msg.Description = msg.Content + "."
		msg.Color = colorAction
		fields = append(fields, MessageField{Name: "Player", Value: ev.Principal, Inline: true})
	case ledger.EventSessionFinished:
		if ev.Finished == nil {
			return Message{}, false
		}
		f := ev.Finished
		msg.Title = "Room Settled · " + room
		msg.Content = fmt.Sprintf("%s wins %d", f.Winner, f.WinnerPrize)
		msg.Description = fmt.Sprintf("Pool %d, fee %d.", f.PrizePool, f.PlatformFee)
		msg.Color = colorWin
		fields = append(fields,
			MessageField{Name: "Winner", Value: f.Winner, Inline: true},
			MessageField{Name: "Prize", Value: strconv.FormatInt(f.WinnerPrize, 10), Inline: true},
			MessageField{Name: "Fee", Value: strconv.FormatInt(f.PlatformFee, 10), Inline: true},
		)
	case ledger.EventSessionTerminated:
		if ev.Terminated == nil {
			return Message{}, false
		}
		msg.Title = "Room Terminated · " + room
		msg.Content = "emergency end"
		msg.Description = fmt.Sprintf("Refunded %d to %d players.", ev.Terminated.Refund, len(ev.Terminated.Participants))
		msg.Color = colorCritical
		fields = append(fields, MessageField{Name: "Refund", Value: strconv.FormatInt(ev.Terminated.Refund, 10), Inline: true})
	case ledger.EventFeesWithdrawn:
		if ev.Withdrawn == nil {
			return Message{}, false
		}
		msg.Title = "Fees Withdrawn"
		msg.Content = fmt.Sprintf("%d withdrawn to %s", ev.Withdrawn.Amount, ev.Withdrawn.To)
		msg.Description = msg.Content + "."
		msg.Color = colorTreasury
		fields = append(fields, MessageField{Name: "Amount", Value: strconv.FormatInt(ev.Withdrawn.Amount, 10), Inline: true})
	default:
		return Message{}, false
	}

	msg.Fields = fields
	return msg, true
}

func eventTimestamp(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
