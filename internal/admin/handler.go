package admin

import (
	"context"
	"log"

	"github.com/ciabot/redactor/internal/protocol"
)

// Handle decodes a command event from the bridge, executes it and returns
// the encoded reply. It returns nil when the event cannot be decoded or no
// reply can be produced.
func (g *Gateway) Handle(ctx context.Context, data []byte) []byte {
	msgType, payload, err := protocol.ParseEvent(data)
	if err != nil {
		log.Printf("[admin] dropping event: %v", err)
		return nil
	}
	ev, ok := payload.(protocol.CommandEvent)
	if !ok {
		log.Printf("[admin] unexpected event type=%q on command subject", msgType)
		return nil
	}

	req := RequestFromEvent(ev)
	reply, err := g.Execute(ctx, req)

	public := false
	if cmd, ok := g.registry.Lookup(req.Command); ok {
		public = cmd.Public && err == nil
	}

	out, encErr := protocol.Encode(protocol.TypeCommandReply, protocol.CommandReply{
		ID:        ev.ID,
		Content:   reply,
		Ephemeral: !public,
	})
	if encErr != nil {
		log.Printf("[admin] encode reply command=%s: %v", req.Command, encErr)
		return nil
	}
	return out
}

// RequestFromEvent converts a bridge command event into a Request.
func RequestFromEvent(ev protocol.CommandEvent) Request {
	return Request{
		Command:   ev.Command,
		Args:      ev.Args,
		ChannelID: ev.ChannelID,
		User: User{
			ID:             ev.Member.ID,
			Name:           ev.Member.Username,
			Roles:          ev.Member.Roles,
			ManageMessages: ev.Member.ManageMessages,
			Administrator:  ev.Member.Administrator,
		},
	}
}
