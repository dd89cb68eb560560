package assistant

import (
	"context"
	"strings"
)

const helpText = `I can keep track of your expenses, subscriptions and to-dos.

Examples:
- "lunch 25" records an expense
- "Netflix 15 per month" adds a subscription
- "remind me to call mom tomorrow, it's important" adds a to-do
- "what's due today?" lists your to-dos
- "the release is done" updates a to-do
- "clear all to-dos" deletes every to-do

Commands:
/subscribe_daily - receive a report every morning
/unsubscribe_daily - stop the morning report
/daily_report - get today's report now
/clear - forget our recent conversation
/help - show this message`

// handleCommand 处理以 "/" 开头的命令，不经过意图分类。
func (p *Processor) handleCommand(ctx context.Context, message, userID, platform string) string {
	cmd := strings.ToLower(strings.Fields(message)[0])
	switch cmd {
	case "/help", "/start":
		return helpText
	case "/clear":
		if err := p.ClearConversationContext(ctx, userID); err != nil {
			p.log.WithError(err).Warn("clear conversation context failed")
			return "Sorry, I couldn't clear our conversation, please try again later."
		}
		return "Okay, I've forgotten our recent conversation."
	case "/subscribe_daily":
		if p.subs == nil {
			return msgNoScheduler
		}
		if p.subs.IsSubscribed(userID, platform) {
			return "You're already subscribed to the daily report."
		}
		p.subs.AddSubscriber(userID, platform)
		return "Subscribed! You'll get a report every morning. Send /unsubscribe_daily to stop."
	case "/unsubscribe_daily":
		if p.subs == nil {
			return msgNoScheduler
		}
		if !p.subs.RemoveSubscriber(userID, platform) {
			return "You're not subscribed to the daily report."
		}
		return "Unsubscribed. You won't get the morning report anymore."
	case "/daily_report":
		if p.subs == nil {
			return msgNoScheduler
		}
		return p.subs.SendManualDailyReport(ctx, platform, userID)
	}
	return "Unknown command. Send /help to see what I can do."
}
