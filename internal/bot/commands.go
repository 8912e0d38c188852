package bot

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/ledger"
	"github.com/flemzord/meterbot/pkg/chat"
)

const welcome = "Hi! I'm a chat assistant. Send me a message or a picture and I will answer.\n\n"

func commands() map[string]command {
	return map[string]command{
		"start":   {help: "Start the bot", run: (*Bot).start},
		"help":    {help: "Show help", run: (*Bot).help},
		"new":     {help: "Start new dialog", run: (*Bot).newDialog},
		"retry":   {help: "Regenerate last answer", run: (*Bot).retry},
		"cancel":  {help: "Cancel the running answer", run: (*Bot).cancel},
		"mode":    {help: "Select chat mode", run: (*Bot).mode},
		"model":   {help: "Show or switch the model", run: (*Bot).model},
		"balance": {help: "Show balance", run: (*Bot).balance},
	}
}

func (b *Bot) helpText() string {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "⚪ /%s – %s\n", name, b.commands[name].help)
	}
	return sb.String()
}

func (b *Bot) start(ctx context.Context, msg channel.Inbound, _ string) {
	if _, err := b.ctl.User(ctx, msg.UserID); err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	b.reply(ctx, msg.UserID, welcome+b.helpText(), channel.ParseModeNone)
}

func (b *Bot) help(ctx context.Context, msg channel.Inbound, _ string) {
	b.reply(ctx, msg.UserID, b.helpText(), channel.ParseModeNone)
}

func (b *Bot) newDialog(ctx context.Context, msg channel.Inbound, _ string) {
	d, err := b.ctl.NewDialog(ctx, msg.UserID)
	if err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	b.reply(ctx, msg.UserID, fmt.Sprintf("Starting new dialog (<b>%s</b> mode) ✅", html.EscapeString(d.ChatMode)), channel.ParseModeHTML)
}

func (b *Bot) retry(ctx context.Context, msg channel.Inbound, _ string) {
	if _, err := b.ctl.Retry(ctx, msg.UserID); err != nil {
		b.fail(ctx, msg.UserID, err)
	}
}

// cancel only answers when there was nothing to cancel; a cancelled request
// reports its own outcome.
func (b *Bot) cancel(ctx context.Context, msg channel.Inbound, _ string) {
	if res := b.ctl.Cancel(msg.UserID); res == executor.NothingToCancel {
		b.reply(ctx, msg.UserID, res.Message(), channel.ParseModeNone)
	}
}

func (b *Bot) mode(ctx context.Context, msg channel.Inbound, arg string) {
	if arg == "" {
		u, err := b.ctl.User(ctx, msg.UserID)
		if err != nil {
			b.fail(ctx, msg.UserID, err)
			return
		}
		text := fmt.Sprintf("Current mode: %s", u.ChatMode)
		if modes := b.ctl.ChatModes(); len(modes) > 0 {
			text += "\nAvailable: " + strings.Join(modes, ", ") + "\nSend /mode <name> to switch."
		}
		b.reply(ctx, msg.UserID, text, channel.ParseModeNone)
		return
	}

	d, err := b.ctl.SetChatMode(ctx, msg.UserID, arg)
	if err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	b.reply(ctx, msg.UserID, fmt.Sprintf("Switched to <b>%s</b> mode. Starting new dialog ✅", html.EscapeString(d.ChatMode)), channel.ParseModeHTML)
}

func (b *Bot) model(ctx context.Context, msg channel.Inbound, arg string) {
	if arg == "" {
		u, err := b.ctl.User(ctx, msg.UserID)
		if err != nil {
			b.fail(ctx, msg.UserID, err)
			return
		}
		text := fmt.Sprintf("Current model: %s", u.CurrentModel)
		if b.prices != nil {
			text += "\nAvailable: " + strings.Join(b.prices.Models(), ", ") + "\nSend /model <name> to switch."
		}
		b.reply(ctx, msg.UserID, text, channel.ParseModeNone)
		return
	}

	if err := b.ctl.SetModel(ctx, msg.UserID, arg); err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	b.reply(ctx, msg.UserID, "Model switched to "+arg+" ✅", channel.ParseModeNone)
}

func (b *Bot) balance(ctx context.Context, msg channel.Inbound, _ string) {
	if b.ledger == nil {
		return
	}
	if _, err := b.ctl.User(ctx, msg.UserID); err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	st, err := b.ledger.Statement(ctx, msg.UserID)
	if err != nil {
		b.fail(ctx, msg.UserID, err)
		return
	}
	b.reply(ctx, msg.UserID, formatStatement(st.Balance, st.TotalSpent, st.Lines), channel.ParseModeHTML)
}

func formatStatement(balance, spent chat.Money, lines []ledger.Line) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your balance: <b>%s</b>\nSpent so far: <b>%s</b>\n", balance, spent)
	for _, l := range lines {
		fmt.Fprintf(&sb, "\n- %s (%s): %g → %s", html.EscapeString(l.Model), l.Kind, l.Quantity, l.Cost)
	}
	return sb.String()
}
