// Package bot adapts Telegram updates to the command layer and carries
// outbound notifications back.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"sproutbot/internal/config"
)

type Dispatcher struct {
	api      *tgbotapi.BotAPI
	cfg      config.Config
	commands *Commands
	log      *logrus.Logger
}

func NewDispatcher(api *tgbotapi.BotAPI, cfg config.Config, commands *Commands, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{api: api, cfg: cfg, commands: commands, log: log}
}

// Run polls for updates until the context is cancelled. Each update gets
// its own goroutine so one slow remote call never stalls other users.
func (d *Dispatcher) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := d.api.GetUpdatesChan(u)

	d.log.WithField("bot", d.api.Self.UserName).Info("telegram dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.api.StopReceivingUpdates()
			return
		case upd := <-updates:
			go d.handle(ctx, upd)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("update handler panicked")
		}
	}()

	msg := upd.Message
	if msg == nil || msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}

	handleCtx, cancel := context.WithTimeout(ctx, d.cfg.RemoteTimeout)
	defer cancel()

	reply := d.commands.Route(handleCtx, msg.From.ID, msg.Text)
	if reply == "" {
		return
	}
	if _, err := d.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		d.log.WithError(err).WithField("chat_id", msg.Chat.ID).Warn("reply send failed")
	}
}
