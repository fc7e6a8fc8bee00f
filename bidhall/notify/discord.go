// Package notify provides optional notification sinks beyond the built-in
// WebSocket hub.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/kyeworks/bidhall/bidhall/auction"
)

// DiscordNotifier mirrors auction events into a Discord channel. It is a
// plain event sink: delivery failures are logged, never propagated back into
// the engine.
type DiscordNotifier struct {
	client    bot.Client
	channelID snowflake.ID
}

func NewDiscordNotifier(token string, channelID snowflake.ID) (*DiscordNotifier, error) {
	client, err := disgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}
	return &DiscordNotifier{
		client:    client,
		channelID: channelID,
	}, nil
}

func (n *DiscordNotifier) Deliver(ev auction.Event) {
	var message string
	switch ev.Type {
	case auction.EventBidUpdate:
		if ev.Bid == nil {
			return
		}
		message = fmt.Sprintf("[BID] %s placed a bid of %s 💰 on auction %s",
			ev.Bid.BidderName, ev.Bid.Amount.String(), ev.AuctionID)
	case auction.EventAuctionComplete:
		if ev.Auction == nil {
			return
		}
		if ev.Auction.WinnerID == "" {
			message = fmt.Sprintf("🏛️ Auction **%s** ended with no bids", ev.Auction.Title)
		} else {
			message = fmt.Sprintf("🏛️ Auction **%s** won by %s at %s",
				ev.Auction.Title, ev.Auction.WinnerName, ev.Auction.WinningPrice.String())
		}
	default:
		// Full state snapshots stay on the WebSocket hub; the channel
		// only carries the headline events.
		return
	}

	_, err := n.client.Rest().CreateMessage(n.channelID, discord.NewMessageCreateBuilder().
		SetContent(message).
		Build())
	if err != nil {
		slog.Error("Failed to send to Discord",
			slog.String("auction_id", ev.AuctionID),
			slog.String("error", err.Error()))
	}
}

func (n *DiscordNotifier) Close(ctx context.Context) {
	n.client.Close(ctx)
}
