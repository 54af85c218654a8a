package stream

import "cipher-rooms/internal/ledger"

// Project is the public view of a ledger event. Ciphertexts are reduced to
// their handles; sealed bytes and reader lists never leave the server.
func Project(ev ledger.Event) map[string]any {
	out := map[string]any{
		"seq":  ev.Seq,
		"type": string(ev.Type),
		"at":   ev.At.UTC().UnixMilli(),
	}
	if ev.SessionID != 0 {
		out["session_id"] = ev.SessionID
	}
	if ev.Principal != "" {
		out["principal"] = ev.Principal
	}
	switch {
	case ev.Created != nil:
		d := ev.Created
		out["name"] = d.Name
		out["category"] = d.Category
		out["capacity"] = d.Capacity
		out["difficulty"] = d.Difficulty
		out["stake"] = d.Stake
		out["creator"] = ev.Principal
	case ev.Joined != nil:
		out["occupancy"] = ev.Joined.Occupancy
	case ev.Started != nil:
		out["occupancy"] = ev.Started.Occupancy
		out["participants"] = ev.Started.Participants
	case ev.Move != nil:
		out["move_handle"] = ev.Move.Move.Handle
		out["submitted_at"] = ev.At.UTC().UnixMilli()
	case ev.Finished != nil:
		out["winner"] = ev.Finished.Winner
		out["winner_prize"] = ev.Finished.WinnerPrize
		out["platform_fee"] = ev.Finished.PlatformFee
	case ev.Terminated != nil:
		out["refund"] = ev.Terminated.Refund
		out["participants"] = ev.Terminated.Participants
	case ev.Withdrawn != nil:
		out["amount"] = ev.Withdrawn.Amount
	}
	return out
}
