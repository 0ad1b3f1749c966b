// Package console implements notifier.Notifier by writing to a logger —
// used for local development and tests, where no Apprise relay is
// configured.
package console

import (
	"context"

	"github.com/phuslu/log"
)

// Notifier logs every notification instead of delivering it.
type Notifier struct {
	logger log.Logger
}

// New returns a console Notifier.
func New(logger log.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) SendText(ctx context.Context, userID, text string) error {
	n.logger.Info().Str("component", "notifier").Str("user_id", userID).Str("text", text).Msg("send_text")
	return nil
}

func (n *Notifier) SendPhoto(ctx context.Context, userID, photoURL, caption string) error {
	n.logger.Info().Str("component", "notifier").Str("user_id", userID).Str("photo_url", photoURL).Str("caption", caption).Msg("send_photo")
	return nil
}

func (n *Notifier) SendAdmin(ctx context.Context, text string) error {
	n.logger.Info().Str("component", "notifier").Str("text", text).Msg("send_admin")
	return nil
}
