// Package telegram connects meterbot to the Telegram Bot API.
//
// Transport implements channel.Transport and channel.Typer on top of
// sendMessage, editMessageText and sendChatAction. Poller long-polls
// getUpdates and hands each private message to a handler as an Incoming,
// downloading attached photos.
//
// No external Telegram library is used; the package talks to the Bot API
// with net/http and encoding/json.
package telegram
